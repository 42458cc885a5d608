package analyzer

import "github.com/alexhholmes/abilayout/internal/descriptor"

// ResolvedField is a field with its assigned storage. Never modified
// after the resolver returns.
type ResolvedField struct {
	Descriptor   descriptor.Field
	Class        Class
	ByteOffset   uint
	SizeBytes    uint
	MinAlignment uint
	BitOffset    uint // position within the packing word, bitfields only

	// InvalidBitfield is set when the declared width does not fit the
	// packing word. The field keeps a position but is never accessed
	// through reconstructed offsets.
	InvalidBitfield bool

	Union *UnionPlan // set when this entry is an embedded union
	Probe *Probe
}

func (f *ResolvedField) End() uint {
	return f.ByteOffset + f.SizeBytes
}

func (f *ResolvedField) IsUnion() bool {
	return f.Union != nil
}

// LayoutPlan is the offset table of one aggregate. A derived plan keeps
// a pointer to its parent's plan; inherited entries are shared.
type LayoutPlan struct {
	Name           string
	Parent         *LayoutPlan
	TotalSize      uint
	TotalAlignment uint
	Valid          bool
	Err            error
	Warnings       []string

	own []*ResolvedField
}

// Own returns the fields declared by this type
func (p *LayoutPlan) Own() []*ResolvedField {
	return p.own
}

// Fields returns inherited fields followed by own fields
func (p *LayoutPlan) Fields() []*ResolvedField {
	if p.Parent == nil {
		return p.own
	}
	inherited := p.Parent.Fields()
	out := make([]*ResolvedField, 0, len(inherited)+len(p.own))
	out = append(out, inherited...)
	return append(out, p.own...)
}

// Field finds a top level entry by cname, inherited entries included
func (p *LayoutPlan) Field(cname string) *ResolvedField {
	for _, f := range p.Fields() {
		if f.Descriptor.CName == cname {
			return f
		}
	}
	return nil
}

// Lookup finds any field by its qualified path. Offsets of union-nested
// fields are returned relative to the start of this type.
func (p *LayoutPlan) Lookup(path descriptor.Path) (ResolvedField, bool) {
	if path.IsZero() {
		return ResolvedField{}, false
	}
	for _, f := range p.Fields() {
		if f.Descriptor.CName != path[0] {
			continue
		}
		if !f.IsUnion() {
			if len(path) == 1 {
				return *f, true
			}
			continue
		}
		for _, nested := range f.Union.Fields() {
			if nested.Descriptor.QualifiedPath().Equal(path) {
				abs := *nested
				abs.ByteOffset += f.ByteOffset
				return abs, true
			}
		}
	}
	return ResolvedField{}, false
}

// Flatten returns own fields with embedded unions expanded into their
// nested fields, at offsets relative to the start of this type.
func (p *LayoutPlan) Flatten() []ResolvedField {
	var out []ResolvedField
	for _, f := range p.own {
		if !f.IsUnion() {
			out = append(out, *f)
			continue
		}
		for _, nested := range f.Union.Fields() {
			abs := *nested
			abs.ByteOffset += f.ByteOffset
			out = append(out, abs)
		}
	}
	return out
}

func (p *LayoutPlan) invalidate(err error) {
	p.Valid = false
	p.Err = err
	p.TotalSize = 0
}

// UnionPlan overlays sibling substructures at offset 0
type UnionPlan struct {
	Name           string
	Substructs     []*LayoutPlan
	TotalSize      uint
	TotalAlignment uint
	Valid          bool
	Err            error
}

// Fields returns the fields of every substructure, in declaration order
func (u *UnionPlan) Fields() []*ResolvedField {
	var out []*ResolvedField
	for _, s := range u.Substructs {
		out = append(out, s.own...)
	}
	return out
}
