package access

import (
	"errors"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/alexhholmes/abilayout/internal/analyzer"
	"github.com/alexhholmes/abilayout/internal/descriptor"
)

// ErrGlueUnavailable reports a field that needs external accessors in a
// run with no glue target configured
var ErrGlueUnavailable = errors.New("glue unavailable")

// Strategy is how generated code reaches a field
type Strategy int

const (
	EmbeddedMirror   Strategy = iota // Field of a layout-compatible mirror struct
	ComputedOffset                   // Handle address plus byte offset
	ExternalAccessor                 // Getter/setter compiled against the native header
)

func (s Strategy) String() string {
	switch s {
	case EmbeddedMirror:
		return "mirror"
	case ComputedOffset:
		return "offset"
	case ExternalAccessor:
		return "external"
	default:
		return "unknown"
	}
}

// OffsetExpr is the offset of a ComputedOffset field. Symbol, when set,
// names a glue function returning the authoritative offset at run time;
// Value is the reconstructed offset.
type OffsetExpr struct {
	Value  uint
	Symbol string
}

// Plan is the access decision for one field
type Plan struct {
	Owner    *descriptor.Type
	Field    analyzer.ResolvedField
	Strategy Strategy
	Offset   OffsetExpr
	Getter   string
	Setter   string
	Readable bool
	Writable bool

	// Callback fields hold function pointers; writers must keep the
	// wrapper alive as long as native code may call it.
	Callback bool
}

// Name is the exported accessor name, "allocation_x" → "AllocationX"
func (p Plan) Name() string {
	return GoName(p.Field.Descriptor.QualifiedPath().Ident())
}

// Path is the qualified field path
func (p Plan) Path() descriptor.Path {
	return p.Field.Descriptor.QualifiedPath()
}

// GoName converts a native identifier to an exported Go identifier
func GoName(native string) string {
	name := inflect.Camelize(strings.ToLower(native))
	if name == "" {
		return "X"
	}
	if c := name[0]; c >= '0' && c <= '9' {
		name = "X" + name
	}
	return name
}

// GluePrefix is the symbol prefix of a type's glue functions:
// namespace "Gtk", name "TextIter" → "gtkgo_gtk_text_iter"
func GluePrefix(t *descriptor.Type) string {
	ns := strings.ReplaceAll(t.Namespace, ".", "__")
	name := strings.ReplaceAll(t.Name, ".", "__")
	return strings.ToLower(ns) + "go_" + strings.ToLower(inflect.Underscore(ns+name))
}
