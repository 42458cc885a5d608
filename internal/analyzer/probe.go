package analyzer

import (
	"fmt"
	"sort"

	"github.com/alexhholmes/abilayout/internal/descriptor"
	"github.com/alexhholmes/abilayout/internal/target"
)

// Probe construct member names
const (
	ProbeSentinel = "sentinel"
	ProbeSubject  = "subject"
)

// ReadBack supplies values measured by compiling the probe constructs
type ReadBack interface {
	Lookup(marker string) (uint, bool)
}

// Probe is the synthetic construct { char sentinel; T subject; } for one
// aggregate type. The offset of subject is the minimal alignment of T.
// Align and Size are read back from the built probe when available.
type Probe struct {
	Type        string // canonical cname of the subject
	Name        string // construct name, "abi_probe_<Type>"
	AlignMarker string
	SizeMarker  string
	Align       *Pending[uint]
	Size        *Pending[uint]
}

// typeSource is the registry view the prober needs
type typeSource interface {
	Canonical(ref descriptor.TypeRef) descriptor.TypeRef
	Type(name string) (*descriptor.Type, bool)
	Get(name string) Result
}

// Prober measures native field types. Primitives and pointers come from
// the target table; aggregates get a probe construct.
type Prober struct {
	target   *target.Target
	types    typeSource
	readBack ReadBack
	probes   map[string]*Probe
}

func newProber(t *target.Target, types typeSource, rb ReadBack) *Prober {
	return &Prober{
		target:   t,
		types:    types,
		readBack: rb,
		probes:   make(map[string]*Probe),
	}
}

// Classify reports how f would be measured without measuring it
func (p *Prober) Classify(f descriptor.Field) Class {
	if f.Callback {
		return ClassCallback
	}
	ref := p.types.Canonical(f.Type)
	if ref.IsPointer() {
		return ClassPointer
	}
	base := ref.Base()
	if prim, ok := p.target.Primitive(base); ok {
		if prim.Go == "unsafe.Pointer" {
			return ClassPointer
		}
		return ClassPrimitive
	}
	if t, ok := p.types.Type(base); ok {
		if t.Kind == descriptor.Callback {
			return ClassCallback
		}
		return ClassAggregate
	}
	return ClassUnknown
}

// Measure returns the size and minimal alignment of a field's element type.
// Bitfields are not measured here; they take the packing word.
func (p *Prober) Measure(f descriptor.Field) (Measurement, error) {
	class := p.Classify(f)
	ptr := p.target.PointerSize

	switch class {
	case ClassPointer, ClassCallback:
		return Measurement{Class: class, Size: ptr, Align: ptr}, nil

	case ClassPrimitive:
		prim, _ := p.target.Primitive(p.types.Canonical(f.Type).Base())
		return Measurement{Class: class, Size: prim.Size, Align: prim.Align}, nil

	case ClassAggregate:
		probe := p.Probe(p.types.Canonical(f.Type).Base())
		align, aok := probe.Align.Get()
		size, sok := probe.Size.Get()
		if !aok || !sok || align == 0 {
			return Measurement{}, fmt.Errorf("%w: %s (probe %s has no value)", ErrUnresolvedType, f.Type, probe.Name)
		}
		return Measurement{Class: class, Size: size, Align: align, Probe: probe}, nil
	}

	return Measurement{}, fmt.Errorf("%w: %s", ErrUnresolvedType, f.Type)
}

// Probe returns the construct for an aggregate, creating it on first use.
// Values come from the read-back table first, then from the registry's
// reconstructed layout of the type.
func (p *Prober) Probe(cname string) *Probe {
	if probe, ok := p.probes[cname]; ok {
		return probe
	}

	probe := &Probe{
		Type:        cname,
		Name:        "abi_probe_" + cname,
		AlignMarker: AlignMarker(cname),
		SizeMarker:  SizeMarker(cname),
	}
	probe.Align = NewPending(func() (uint, bool) {
		return p.lookup(probe.AlignMarker, cname, func(plan *LayoutPlan) uint { return plan.TotalAlignment })
	})
	probe.Size = NewPending(func() (uint, bool) {
		return p.lookup(probe.SizeMarker, cname, func(plan *LayoutPlan) uint { return plan.TotalSize })
	})

	p.probes[cname] = probe
	return probe
}

func (p *Prober) lookup(marker, cname string, fromPlan func(*LayoutPlan) uint) (uint, bool) {
	if p.readBack != nil {
		if v, ok := p.readBack.Lookup(marker); ok {
			return v, true
		}
	}
	res := p.types.Get(cname)
	if res.Status != Valid {
		return 0, false
	}
	return fromPlan(res.Plan), true
}

// Constructs returns every probe emitted so far, sorted by name
func (p *Prober) Constructs() []*Probe {
	out := make([]*Probe, 0, len(p.probes))
	for _, probe := range p.probes {
		out = append(out, probe)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
