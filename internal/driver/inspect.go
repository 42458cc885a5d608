package driver

import (
	"github.com/alexhholmes/abilayout/internal/analyzer"
)

// FieldView is one resolved field as shown by inspect
type FieldView struct {
	Path      string `yaml:"path"`
	Type      string `yaml:"type"`
	Class     string `yaml:"class"`
	Offset    uint   `yaml:"offset"`
	Size      uint   `yaml:"size"`
	Bits      uint   `yaml:"bits,omitempty"`
	BitOffset uint   `yaml:"bit_offset,omitempty"`
	Inherited bool   `yaml:"inherited,omitempty"`
}

// TypeView is the layout of one type as shown by inspect
type TypeView struct {
	CName  string      `yaml:"cname"`
	Parent string      `yaml:"parent,omitempty"`
	Status string      `yaml:"status"`
	Size   uint        `yaml:"size,omitempty"`
	Align  uint        `yaml:"align,omitempty"`
	Error  string      `yaml:"error,omitempty"`
	Fields []FieldView `yaml:"fields,omitempty"`
}

// Describe returns the layouts of every emitted type
func (s *Session) Describe() []TypeView {
	var out []TypeView
	for _, t := range s.Generate {
		res := s.Registry.Get(t.CName)
		v := TypeView{CName: t.CName, Parent: t.Parent, Status: res.Status.String()}
		if res.Err != nil {
			v.Error = res.Err.Error()
		}
		if res.Status == analyzer.Valid {
			v.Size, v.Align = res.Plan.TotalSize, res.Plan.TotalAlignment
			v.Fields = fieldViews(res.Plan)
		}
		out = append(out, v)
	}
	return out
}

func fieldViews(plan *analyzer.LayoutPlan) []FieldView {
	var out []FieldView
	add := func(f analyzer.ResolvedField, inherited bool) {
		d := f.Descriptor
		out = append(out, FieldView{
			Path:      d.QualifiedPath().String(),
			Type:      d.Type.String(),
			Class:     f.Class.String(),
			Offset:    f.ByteOffset,
			Size:      f.SizeBytes,
			Bits:      d.Bits,
			BitOffset: f.BitOffset,
			Inherited: inherited,
		})
	}

	var chain []*analyzer.LayoutPlan
	for p := plan.Parent; p != nil; p = p.Parent {
		chain = append([]*analyzer.LayoutPlan{p}, chain...)
	}
	for _, p := range chain {
		for _, f := range p.Flatten() {
			add(f, true)
		}
	}
	for _, f := range plan.Flatten() {
		add(f, false)
	}
	return out
}
