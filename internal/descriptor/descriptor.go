package descriptor

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Kind classifies a native aggregate
type Kind int

const (
	Struct   Kind = iota // Plain C struct, fields public by default
	Object               // Instance struct of a class with single inheritance
	Boxed                // Reference counted / copyable struct
	Opaque               // No visible fields, declared size/align only
	Callback             // Function pointer type
)

func (k Kind) String() string {
	switch k {
	case Struct:
		return "struct"
	case Object:
		return "object"
	case Boxed:
		return "boxed"
	case Opaque:
		return "opaque"
	case Callback:
		return "callback"
	default:
		return "unknown"
	}
}

// ParseKind maps an input element name to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "struct":
		return Struct, nil
	case "object", "class", "interface":
		return Object, nil
	case "boxed":
		return Boxed, nil
	case "opaque":
		return Opaque, nil
	case "callback":
		return Callback, nil
	default:
		return 0, fmt.Errorf("unknown kind: %s", s)
	}
}

type Access int

const (
	Public Access = iota
	Private
)

func (a Access) String() string {
	if a == Private {
		return "private"
	}
	return "public"
}

// TypeRef is a native type reference as written in the input,
// e.g. "gint", "GtkWidget*", "const-gchar*".
type TypeRef string

// IsPointer reports whether the reference is a pointer of any depth
func (r TypeRef) IsPointer() bool {
	return strings.HasSuffix(strings.TrimSpace(string(r)), "*")
}

// Base strips const qualifiers and pointer stars
// "const-GtkWidget*" → "GtkWidget"
func (r TypeRef) Base() string {
	s := strings.TrimSpace(string(r))
	s = strings.TrimPrefix(s, "const-")
	s = strings.TrimPrefix(s, "const ")
	return strings.TrimSpace(strings.TrimRight(s, "* "))
}

// C renders the reference as C source: "const-gchar*" → "const gchar *"
func (r TypeRef) C() string {
	s := strings.TrimSpace(string(r))
	s = strings.Replace(s, "const-", "const ", 1)
	if n := strings.Count(s, "*"); n > 0 {
		return strings.TrimSpace(strings.TrimRight(s, "* ")) + " " + strings.Repeat("*", n)
	}
	return s
}

func (r TypeRef) String() string { return string(r) }

var arrayRe = regexp.MustCompile(`^(.+?)\s*\[(\d+)\]$`)

// SplitArray splits an array reference: "gchar[16]" → ("gchar", 16).
// Non-array references are returned unchanged with length 0.
func SplitArray(ref string) (TypeRef, uint, error) {
	matches := arrayRe.FindStringSubmatch(strings.TrimSpace(ref))
	if matches == nil {
		return TypeRef(strings.TrimSpace(ref)), 0, nil
	}

	n, err := strconv.Atoi(matches[2])
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("invalid array length: %s", matches[2])
	}
	return TypeRef(matches[1]), uint(n), nil
}

// Path is the owner path of a union-nested field: the union cname,
// followed by the substructure cname when the substructure has more
// than one field. Compared structurally; rendered only on emission.
type Path []string

// Append returns a new path; p is never modified
func (p Path) Append(segs ...string) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

func (p Path) Equal(o Path) bool { return slices.Equal(p, o) }

// Key is a collision free map key
func (p Path) Key() string { return strings.Join(p, "\x00") }

// String is the display form, "u.s.x"
func (p Path) String() string { return strings.Join(p, ".") }

// Ident is the identifier form, "u_s_x"
func (p Path) Ident() string { return strings.Join(p, "_") }

func (p Path) IsZero() bool { return len(p) == 0 }

// Field describes one native field. Immutable once built.
type Field struct {
	Name     string
	CName    string
	Type     TypeRef
	Bits     uint // 0 = not a bitfield
	Order    uint
	ArrayLen uint // 0 = scalar
	Callback bool
	Access   Access
	Hidden   bool
	Readable bool
	Writable bool
	Path     Path // owner path for union-nested fields
}

func (f Field) IsBitfield() bool { return f.Bits > 0 }

func (f Field) IsArray() bool { return f.ArrayLen > 0 }

// Visible reports whether the field participates in accessor generation
func (f Field) Visible() bool { return !f.Hidden && f.Access == Public }

// QualifiedPath is the owner path plus the field's own cname
func (f Field) QualifiedPath() Path { return f.Path.Append(f.CName) }

// Substruct is one member of a union: a single field or a nested struct.
// Single marks a bare field; a nested struct is qualified by its cname
// even when it holds one field.
type Substruct struct {
	Name   string
	CName  string
	Single bool
	Fields []Field
}

type Union struct {
	Name       string
	CName      string
	Order      uint
	Substructs []Substruct
}

// NewUnion builds a union and assigns every contained field its owner path
func NewUnion(name, cname string, order uint, subs []Substruct) *Union {
	u := &Union{Name: name, CName: cname, Order: order}
	for _, s := range subs {
		owner := Path{cname}
		if !s.Single {
			owner = owner.Append(s.CName)
		}
		fields := make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			f.Path = owner
			fields[i] = f
		}
		s.Fields = fields
		u.Substructs = append(u.Substructs, s)
	}
	return u
}

// Member is either a Field or a Union, in declaration order
type Member struct {
	Field *Field
	Union *Union
}

func (m Member) Order() uint {
	if m.Union != nil {
		return m.Union.Order
	}
	return m.Field.Order
}

func (m Member) CName() string {
	if m.Union != nil {
		return m.Union.CName
	}
	return m.Field.CName
}

// Type describes one native aggregate
type Type struct {
	Name      string
	CName     string
	Namespace string
	Kind      Kind
	Parent    string // parent cname, Object only
	Members   []Member
	Size      uint // declared size, Opaque only
	Align     uint // declared alignment, Opaque only
}

// Fields returns the top level fields, unions excluded
func (t *Type) Fields() []Field {
	var out []Field
	for _, m := range t.Members {
		if m.Field != nil {
			out = append(out, *m.Field)
		}
	}
	return out
}

// ParentMember returns the index of the member holding the parent
// instance, or -1. Only the first plain field qualifies; unions before it
// do not count.
func (t *Type) ParentMember() int {
	if t.Parent == "" {
		return -1
	}
	for i, m := range t.Members {
		if m.Field == nil {
			continue
		}
		if m.Field.Type.Base() == t.Parent {
			return i
		}
		return -1
	}
	return -1
}

// AllFields returns every field including union-nested ones
func (t *Type) AllFields() []Field {
	var out []Field
	for _, m := range t.Members {
		if m.Field != nil {
			out = append(out, *m.Field)
			continue
		}
		for _, s := range m.Union.Substructs {
			out = append(out, s.Fields...)
		}
	}
	return out
}

// Validate checks declaration invariants
func (t *Type) Validate() error {
	if t.CName == "" {
		return fmt.Errorf("type %q: missing cname", t.Name)
	}

	var last uint
	seen := make(map[string]bool)
	for i, m := range t.Members {
		if i > 0 && m.Order() <= last {
			return fmt.Errorf("%s: member %s: order %d not after %d", t.CName, m.CName(), m.Order(), last)
		}
		last = m.Order()

		if seen[m.CName()] {
			return fmt.Errorf("%s: duplicate member %s", t.CName, m.CName())
		}
		seen[m.CName()] = true

		if m.Field != nil {
			if err := validateField(*m.Field); err != nil {
				return fmt.Errorf("%s: %w", t.CName, err)
			}
			continue
		}
		for _, s := range m.Union.Substructs {
			if len(s.Fields) == 0 {
				return fmt.Errorf("%s: union %s: empty substructure %s", t.CName, m.Union.CName, s.CName)
			}
			names := make(map[string]bool)
			for j, f := range s.Fields {
				if j > 0 && f.Order <= s.Fields[j-1].Order {
					return fmt.Errorf("%s: field %s: order not increasing", t.CName, f.QualifiedPath())
				}
				if names[f.CName] {
					return fmt.Errorf("%s: duplicate field %s", t.CName, f.QualifiedPath())
				}
				names[f.CName] = true
				if err := validateField(f); err != nil {
					return fmt.Errorf("%s: %w", t.CName, err)
				}
			}
		}
	}
	return nil
}

func validateField(f Field) error {
	if f.CName == "" {
		return fmt.Errorf("field %q: missing cname", f.Name)
	}
	if f.IsBitfield() && (f.Type.IsPointer() || f.Callback) {
		return fmt.Errorf("field %s: bitfield on pointer or callback", f.CName)
	}
	if f.IsBitfield() && f.IsArray() {
		return fmt.Errorf("field %s: bitfield array", f.CName)
	}
	return nil
}
