package analyzer

import (
	"github.com/alexhholmes/abilayout/internal/descriptor"
	"github.com/alexhholmes/abilayout/internal/target"
)

func field(cname string, typ descriptor.TypeRef, order uint) descriptor.Member {
	return descriptor.Member{Field: &descriptor.Field{
		Name:     cname,
		CName:    cname,
		Type:     typ,
		Order:    order,
		Readable: true,
		Writable: true,
	}}
}

func bitfield(cname string, bits, order uint) descriptor.Member {
	m := field(cname, "guint", order)
	m.Field.Bits = bits
	return m
}

func newType(cname string, members ...descriptor.Member) *descriptor.Type {
	return &descriptor.Type{Name: cname, CName: cname, Namespace: "Test", Kind: descriptor.Struct, Members: members}
}

func newChild(cname, parent string, members ...descriptor.Member) *descriptor.Type {
	t := newType(cname, members...)
	t.Kind = descriptor.Object
	t.Parent = parent
	return t
}

func mustTarget(name string) *target.Target {
	t, err := target.Find(name)
	if err != nil {
		panic(err)
	}
	return t
}

// registryWith registers types on the default target, panicking on error
func registryWith(types ...*descriptor.Type) *Registry {
	r := NewRegistry(target.Default())
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// table is an in-memory read-back source
type table map[string]uint

func (t table) Lookup(marker string) (uint, bool) {
	v, ok := t[marker]
	return v, ok
}
