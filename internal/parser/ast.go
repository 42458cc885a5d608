package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/alexhholmes/abilayout/internal/descriptor"
)

// ParseSource parses a Go source file and extracts types with @native
// annotations. src follows go/parser.ParseFile: nil reads filename.
func ParseSource(filename string, src any) (*Document, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	doc := &Document{Path: filename}
	if err := extractTypes(doc, file); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return doc, nil
}

func extractTypes(doc *Document, file *ast.File) error {
	namespace := inflect.Camelize(file.Name.Name)

	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}

		for _, spec := range genDecl.Specs {
			typeSpec := spec.(*ast.TypeSpec)

			comments := typeSpec.Doc
			if comments == nil {
				comments = genDecl.Doc
			}
			anno, err := extractAnnotation(comments)
			if err != nil {
				return fmt.Errorf("%s: %w", typeSpec.Name.Name, err)
			}
			if anno == nil {
				continue // No @native, skip this type
			}

			name := typeSpec.Name.Name
			ns := anno.Namespace
			if ns == "" {
				ns = namespace
			}
			cname := anno.CName
			if cname == "" {
				cname = ns + name
			}

			if anno.Alias != "" {
				doc.Aliases = append(doc.Aliases, Alias{Name: cname, Target: anno.Alias})
				continue
			}

			t := &descriptor.Type{
				Name:      name,
				CName:     cname,
				Namespace: ns,
				Kind:      anno.Kind,
				Parent:    anno.Parent,
				Size:      anno.Size,
				Align:     anno.Align,
			}

			if t.Kind != descriptor.Opaque && t.Kind != descriptor.Callback {
				structType, ok := typeSpec.Type.(*ast.StructType)
				if !ok {
					return fmt.Errorf("%s: @native %s is not a struct", name, t.Kind)
				}
				t.Members, err = extractMembers(structType)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}

			doc.Types = append(doc.Types, t)
		}
	}

	return nil
}

func extractAnnotation(doc *ast.CommentGroup) (*TypeAnnotation, error) {
	if doc == nil {
		return nil, nil
	}

	var lines []string
	for _, comment := range doc.List {
		lines = append(lines, CleanComment(comment.Text))
	}

	anno, found, err := FindAnnotation(lines)
	if !found {
		return nil, nil
	}
	return anno, err
}

// taggedField is a named struct field carrying a native tag
type taggedField struct {
	name string
	tag  *FieldTag
	expr ast.Expr
}

func taggedFields(structType *ast.StructType) ([]taggedField, error) {
	var out []taggedField

	for _, field := range structType.Fields.List {
		if len(field.Names) == 0 {
			continue // Embedded field, skip
		}
		if field.Tag == nil {
			continue
		}

		tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
		nativeTag := tag.Get("native")
		if nativeTag == "" {
			continue
		}

		parsed, err := ParseTag(nativeTag)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Names[0].Name, err)
		}
		if parsed.Skip {
			continue
		}

		for _, ident := range field.Names {
			out = append(out, taggedField{name: ident.Name, tag: parsed, expr: field.Type})
		}
	}

	return out, nil
}

func extractMembers(structType *ast.StructType) ([]descriptor.Member, error) {
	fields, err := taggedFields(structType)
	if err != nil {
		return nil, err
	}

	members := make([]descriptor.Member, 0, len(fields))
	for i, tf := range fields {
		order := uint(i)

		switch {
		case tf.tag.Union:
			inner, ok := tf.expr.(*ast.StructType)
			if !ok {
				return nil, fmt.Errorf("field %s: union must be an anonymous struct", tf.name)
			}
			subs, err := extractSubstructs(inner)
			if err != nil {
				return nil, fmt.Errorf("union %s: %w", tf.name, err)
			}
			cname := tf.tag.CName
			if cname == "" {
				cname = nativeName(tf.name)
			}
			members = append(members, descriptor.Member{Union: descriptor.NewUnion(tf.name, cname, order, subs)})

		case tf.tag.Struct:
			return nil, fmt.Errorf("field %s: struct is only allowed inside a union", tf.name)

		default:
			f := tf.tag.Field(tf.name, order)
			members = append(members, descriptor.Member{Field: &f})
		}
	}

	return members, nil
}

func extractSubstructs(structType *ast.StructType) ([]descriptor.Substruct, error) {
	fields, err := taggedFields(structType)
	if err != nil {
		return nil, err
	}

	var subs []descriptor.Substruct
	for _, tf := range fields {
		switch {
		case tf.tag.Union:
			return nil, fmt.Errorf("field %s: unions cannot nest", tf.name)

		case tf.tag.Struct:
			inner, ok := tf.expr.(*ast.StructType)
			if !ok {
				return nil, fmt.Errorf("field %s: struct must be an anonymous struct", tf.name)
			}
			members, err := extractMembers(inner)
			if err != nil {
				return nil, fmt.Errorf("struct %s: %w", tf.name, err)
			}
			sub := descriptor.Substruct{Name: tf.name, CName: tf.tag.CName}
			if sub.CName == "" {
				sub.CName = nativeName(tf.name)
			}
			for _, m := range members {
				if m.Field == nil {
					return nil, fmt.Errorf("struct %s: unions cannot nest", tf.name)
				}
				sub.Fields = append(sub.Fields, *m.Field)
			}
			subs = append(subs, sub)

		default:
			f := tf.tag.Field(tf.name, 0)
			subs = append(subs, descriptor.Substruct{Name: f.Name, CName: f.CName, Single: true, Fields: []descriptor.Field{f}})
		}
	}

	return subs, nil
}
