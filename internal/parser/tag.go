package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexhholmes/abilayout/internal/descriptor"
)

// FieldTag is a parsed native struct tag
type FieldTag struct {
	Type      descriptor.TypeRef
	ArrayLen  uint
	Bits      uint
	CName     string // empty: derived from the Go field name
	Hidden    bool
	Private   bool
	ReadOnly  bool
	WriteOnly bool
	Callback  bool

	Union  bool // anonymous struct holding union members
	Struct bool // multi-field substructure inside a union
	Skip   bool
}

// ParseTag parses native struct tags
//
// Semantics:
//   - "TYPE"            : field of native type TYPE, "gchar*" for pointers
//   - "TYPE[N]"         : inline array of N elements
//   - "bits=N"          : bitfield of width N
//   - "cname=x"         : native field name
//   - "hidden"          : never exposed
//   - "private"         : not public
//   - "readonly"        : no setter
//   - "writeonly"       : no getter
//   - "callback"        : function pointer
//   - "union"           : the field is an anonymous struct of union members
//   - "struct"          : inside a union, a substructure of several fields
//   - "-"               : ignored
//
// Examples:
//
//	"gint"                      → gint
//	"guint,bits=3"              → 3 bit field
//	"GtkAllocation,cname=alloc" → field named alloc
//	"gchar[16],readonly"        → read-only array
//	"union,cname=data"          → union named data
func ParseTag(tag string) (*FieldTag, error) {
	if tag == "" {
		return nil, fmt.Errorf("empty native tag")
	}
	if tag == "-" {
		return &FieldTag{Skip: true}, nil
	}

	f := &FieldTag{}
	parts := strings.Split(tag, ",")

	switch head := strings.TrimSpace(parts[0]); head {
	case "union":
		f.Union = true
	case "struct":
		f.Struct = true
	default:
		if head == "" || strings.Contains(head, "=") {
			return nil, fmt.Errorf("missing native type: %s", tag)
		}
		typ, n, err := descriptor.SplitArray(head)
		if err != nil {
			return nil, err
		}
		f.Type, f.ArrayLen = typ, n
	}

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		key, value, hasValue := strings.Cut(part, "=")

		switch key {
		case "bits":
			bits, err := strconv.ParseUint(value, 10, 32)
			if err != nil || bits == 0 {
				return nil, fmt.Errorf("invalid bits: %s", value)
			}
			f.Bits = uint(bits)
		case "cname":
			if value == "" {
				return nil, fmt.Errorf("cname= requires a name")
			}
			f.CName = value
		case "hidden", "private", "readonly", "writeonly", "callback":
			if hasValue {
				return nil, fmt.Errorf("%s takes no value", key)
			}
			switch key {
			case "hidden":
				f.Hidden = true
			case "private":
				f.Private = true
			case "readonly":
				f.ReadOnly = true
			case "writeonly":
				f.WriteOnly = true
			case "callback":
				f.Callback = true
			}
		default:
			return nil, fmt.Errorf("unknown parameter: %s", part)
		}
	}

	if f.ReadOnly && f.WriteOnly {
		return nil, fmt.Errorf("readonly and writeonly are exclusive")
	}
	if (f.Union || f.Struct) && (f.Bits > 0 || f.Callback) {
		return nil, fmt.Errorf("%s cannot be a bitfield or callback", parts[0])
	}
	return f, nil
}

// Field converts the tag to a descriptor field
func (t *FieldTag) Field(goName string, order uint) descriptor.Field {
	cname := t.CName
	if cname == "" {
		cname = nativeName(goName)
	}
	access := descriptor.Public
	if t.Private {
		access = descriptor.Private
	}
	return descriptor.Field{
		Name:     goName,
		CName:    cname,
		Type:     t.Type,
		Bits:     t.Bits,
		Order:    order,
		ArrayLen: t.ArrayLen,
		Callback: t.Callback,
		Access:   access,
		Hidden:   t.Hidden,
		Readable: !t.WriteOnly,
		Writable: !t.ReadOnly,
	}
}
