package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/alexhholmes/abilayout/internal/descriptor"
)

var errNoAnnotation = errors.New("no @native annotation found")

// TypeAnnotation holds a parsed @native annotation
type TypeAnnotation struct {
	CName     string          // Native type name, empty: namespace + Go name
	Kind      descriptor.Kind // Struct unless kind= is given
	Parent    string          // Parent cname, objects only
	Namespace string
	Alias     descriptor.TypeRef // type=, declares an alias instead of a type
	Size      uint               // Declared size, opaque only
	Align     uint               // Declared alignment, opaque only
}

var (
	annotationRe = regexp.MustCompile(`^@native(?:\s+(.+))?$`)
	pairRe       = regexp.MustCompile(`(\w+)=(\S+)`)
)

// ParseAnnotation parses a @native annotation from comment text
//
// Expected format:
//
//	// @native
//	// @native cname=GtkWidget parent=GtkObject kind=object
//	// @native cname=GtkStateType type=gint
//	// @native cname=GdkAtomPrivate kind=opaque size=16 align=8
//
// Params are space-separated key=value pairs.
func ParseAnnotation(comment string) (*TypeAnnotation, error) {
	matches := annotationRe.FindStringSubmatch(strings.TrimSpace(comment))
	if matches == nil {
		return nil, errNoAnnotation
	}

	anno := &TypeAnnotation{Kind: descriptor.Struct}
	if matches[1] == "" {
		return anno, nil
	}

	params := strings.Fields(matches[1])
	for _, param := range params {
		pair := pairRe.FindStringSubmatch(param)
		if pair == nil || pair[0] != param {
			return nil, fmt.Errorf("invalid parameter: %s", param)
		}
		key, value := pair[1], pair[2]

		switch key {
		case "cname":
			anno.CName = value
		case "parent":
			anno.Parent = value
		case "namespace":
			anno.Namespace = value
		case "type":
			anno.Alias = descriptor.TypeRef(value)
		case "kind":
			kind, err := descriptor.ParseKind(value)
			if err != nil {
				return nil, err
			}
			anno.Kind = kind
		case "size", "align":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil || n == 0 {
				return nil, fmt.Errorf("invalid %s: %s", key, value)
			}
			if key == "size" {
				anno.Size = uint(n)
			} else {
				anno.Align = uint(n)
			}
		default:
			return nil, fmt.Errorf("unknown parameter: %s", key)
		}
	}

	if anno.Parent != "" && anno.Kind != descriptor.Object {
		return nil, fmt.Errorf("parent= requires kind=object")
	}
	if anno.Align > 0 && anno.Align&(anno.Align-1) != 0 {
		return nil, fmt.Errorf("align must be a power of 2, got: %d", anno.Align)
	}
	return anno, nil
}

// FindAnnotation searches comment lines for a @native annotation. A
// malformed annotation is reported rather than skipped.
func FindAnnotation(comments []string) (*TypeAnnotation, bool, error) {
	for _, comment := range comments {
		anno, err := ParseAnnotation(comment)
		if errors.Is(err, errNoAnnotation) {
			continue
		}
		if err != nil {
			return nil, true, err
		}
		return anno, true, nil
	}
	return nil, false, nil
}

// CleanComment removes comment markers from a line
// "// @native cname=X" → "@native cname=X"
// "/* @native cname=X */" → "@native cname=X"
func CleanComment(line string) string {
	line = strings.TrimSpace(line)

	if strings.HasPrefix(line, "//") {
		return strings.TrimSpace(strings.TrimPrefix(line, "//"))
	}

	if strings.HasPrefix(line, "/*") && strings.HasSuffix(line, "*/") {
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		return strings.TrimSpace(line)
	}

	return line
}

// nativeName derives a native identifier from a Go one, "AllocX" → "alloc_x"
func nativeName(goName string) string {
	return inflect.Underscore(goName)
}
