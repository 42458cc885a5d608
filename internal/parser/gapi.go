package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/alexhholmes/abilayout/internal/descriptor"
)

// CurrentParserVersion is the newest GAPI parser_version understood.
// Newer documents are parsed with the newest known semantics.
const CurrentParserVersion = 3

// node is a generic XML element. GAPI documents interleave fields and
// unions, and member order matters, so the tree is kept as is.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []node     `xml:",any"`
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *node) str(name string) string {
	v, _ := n.attr(name)
	return v
}

// boolean reads an xsd:boolean attribute, false when absent
func (n *node) boolean(name string) (bool, error) {
	v, ok := n.attr(name)
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("<%s> %s=%q is not a boolean", n.XMLName.Local, name, v)
	}
	return b, nil
}

func (n *node) number(name string) (uint, error) {
	v, ok := n.attr(name)
	if !ok || v == "" {
		return 0, nil
	}
	u, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("<%s> %s=%q is not a number", n.XMLName.Local, name, v)
	}
	return uint(u), nil
}

// ParseGAPIFile parses a GAPI XML descriptor file. Include paths are
// resolved against the file's directory first.
func ParseGAPIFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := ParseGAPI(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path

	dir := filepath.Dir(path)
	for i, inc := range doc.Includes {
		if rel := filepath.Join(dir, inc); fileExists(rel) {
			doc.Includes[i] = rel
		}
	}
	return doc, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ParseGAPI parses a GAPI XML document
func ParseGAPI(r io.Reader) (*Document, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("invalid XML: %w", err)
	}
	if root.XMLName.Local != "api" {
		return nil, fmt.Errorf("root element is <%s>, want <api>", root.XMLName.Local)
	}

	doc := &Document{Version: 1}
	if v, ok := root.attr("parser_version"); ok {
		version, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("unable to parse parser_version %q", v)
		}
		doc.Version = version
	}
	if doc.Version > CurrentParserVersion {
		Logger().Warn("document created by a newer parser",
			zap.Int("parser_version", doc.Version),
			zap.Int("supported", CurrentParserVersion))
	}

	for i := range root.Children {
		child := &root.Children[i]
		switch child.XMLName.Local {
		case "include":
			if xmlPath := child.str("xml"); xmlPath != "" {
				doc.Includes = append(doc.Includes, xmlPath)
			}
		case "namespace":
			if err := parseNamespace(doc, child); err != nil {
				return nil, err
			}
		case "symbol":
			// Symbols map native names to foreign types and carry no layout
		default:
			Logger().Debug("unexpected child node", zap.String("element", child.XMLName.Local))
		}
	}

	return doc, nil
}

func parseNamespace(doc *Document, ns *node) error {
	nsName := ns.str("name")

	for i := range ns.Children {
		elem := &ns.Children[i]
		hidden, err := elem.boolean("hidden")
		if err != nil {
			return err
		}
		if hidden {
			continue
		}

		switch kind := elem.XMLName.Local; kind {
		case "alias":
			cname, typ := elem.str("cname"), elem.str("type")
			if cname == "" || typ == "" {
				continue
			}
			doc.Aliases = append(doc.Aliases, Alias{Name: cname, Target: descriptor.TypeRef(typ)})

		case "enum":
			// Enumerations are stored as gint
			if cname := elem.str("cname"); cname != "" {
				doc.Aliases = append(doc.Aliases, Alias{Name: cname, Target: "gint"})
			}

		case "callback":
			doc.Types = append(doc.Types, &descriptor.Type{
				Name:      elem.str("name"),
				CName:     elem.str("cname"),
				Namespace: nsName,
				Kind:      descriptor.Callback,
			})

		case "struct", "boxed", "object", "class", "interface":
			t, err := parseType(doc.Version, nsName, elem)
			if err != nil {
				return err
			}
			doc.Types = append(doc.Types, t)

		default:
			Logger().Debug("skipping namespace element",
				zap.String("namespace", nsName),
				zap.String("element", kind),
				zap.String("cname", elem.str("cname")))
		}
	}
	return nil
}

func parseType(version int, ns string, elem *node) (*descriptor.Type, error) {
	kind, err := descriptor.ParseKind(elem.XMLName.Local)
	if err != nil {
		return nil, err
	}
	t := &descriptor.Type{
		Name:      elem.str("name"),
		CName:     elem.str("cname"),
		Namespace: ns,
		Kind:      kind,
		Parent:    elem.str("parent"),
	}
	if t.Kind != descriptor.Object {
		t.Parent = ""
	}

	opaque, err := elem.boolean("opaque")
	if err != nil {
		return nil, err
	}
	if opaque {
		t.Kind = descriptor.Opaque
		if t.Size, err = elem.number("size"); err != nil {
			return nil, err
		}
		if t.Align, err = elem.number("align"); err != nil {
			return nil, err
		}
		return t, nil
	}

	// Struct fields are public unless stated otherwise; class instance
	// fields are private.
	defaultAccess := descriptor.Public
	if kind == descriptor.Object {
		defaultAccess = descriptor.Private
	}

	var order uint
	for i := range elem.Children {
		child := &elem.Children[i]
		switch child.XMLName.Local {
		case "field":
			f, err := parseField(version, defaultAccess, child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t.CName, err)
			}
			f.Order = order
			t.Members = append(t.Members, descriptor.Member{Field: &f})
			order++

		case "union":
			u, err := parseUnion(version, defaultAccess, order, child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t.CName, err)
			}
			t.Members = append(t.Members, descriptor.Member{Union: u})
			order++
		}
	}
	return t, nil
}

func parseUnion(version int, access descriptor.Access, order uint, elem *node) (*descriptor.Union, error) {
	var subs []descriptor.Substruct
	for i := range elem.Children {
		child := &elem.Children[i]
		switch child.XMLName.Local {
		case "field":
			f, err := parseField(version, access, child)
			if err != nil {
				return nil, err
			}
			subs = append(subs, descriptor.Substruct{Name: f.Name, CName: f.CName, Single: true, Fields: []descriptor.Field{f}})

		case "struct":
			sub := descriptor.Substruct{Name: child.str("name"), CName: child.str("cname")}
			for j := range child.Children {
				member := &child.Children[j]
				if member.XMLName.Local != "field" {
					return nil, fmt.Errorf("union %s: <%s> inside substructure %s", elem.str("cname"), member.XMLName.Local, sub.CName)
				}
				f, err := parseField(version, access, member)
				if err != nil {
					return nil, err
				}
				f.Order = uint(len(sub.Fields))
				sub.Fields = append(sub.Fields, f)
			}
			subs = append(subs, sub)

		default:
			return nil, fmt.Errorf("union %s: unexpected <%s>", elem.str("cname"), child.XMLName.Local)
		}
	}
	return descriptor.NewUnion(elem.str("name"), elem.str("cname"), order, subs), nil
}

func parseField(version int, defaultAccess descriptor.Access, elem *node) (descriptor.Field, error) {
	f := descriptor.Field{
		Name:   elem.str("name"),
		CName:  elem.str("cname"),
		Access: defaultAccess,
	}
	if f.Name == "" {
		f.Name = f.CName
	}

	typ, n, err := descriptor.SplitArray(elem.str("type"))
	if err != nil {
		return f, fmt.Errorf("field %s: %w", f.CName, err)
	}
	f.Type, f.ArrayLen = typ, n
	if n, err := elem.number("array_len"); err != nil {
		return f, err
	} else if n > 0 {
		f.ArrayLen = n
	}
	if isArray, err := elem.boolean("array"); err != nil {
		return f, err
	} else if isArray && f.ArrayLen == 0 {
		return f, fmt.Errorf("field %s: array without array_len", f.CName)
	}

	if f.Bits, err = elem.number("bits"); err != nil {
		return f, err
	}
	if f.Callback, err = elem.boolean("is_callback"); err != nil {
		return f, err
	}
	if f.Hidden, err = elem.boolean("hidden"); err != nil {
		return f, err
	}

	switch access := elem.str("access"); access {
	case "":
	case "public":
		f.Access = descriptor.Public
	default:
		// private, protected and internal are not exposed
		f.Access = descriptor.Private
	}

	if f.Readable, err = permission(version, elem, "readable"); err != nil {
		return f, err
	}
	if f.Writable, err = permission(version, elem, "writeable"); err != nil {
		return f, err
	}
	return f, nil
}

// permission reads readable/writeable. Before parser_version 3 only an
// explicit "false" denies; from 3 on the attribute must be present and
// true.
func permission(version int, elem *node, name string) (bool, error) {
	v, ok := elem.attr(name)
	if version <= 2 {
		return v != "false", nil
	}
	if !ok {
		return false, nil
	}
	return elem.boolean(name)
}
