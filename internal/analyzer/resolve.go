package analyzer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/alexhholmes/abilayout/internal/descriptor"
	"github.com/alexhholmes/abilayout/internal/target"
)

// Resolver assigns byte offsets the way the target's C compiler would
type Resolver struct {
	target *target.Target
	prober *Prober
}

func NewResolver(t *target.Target, p *Prober) *Resolver {
	return &Resolver{target: t, prober: p}
}

// Resolve lays out t after the parent prefix (nil for no parent).
// An unresolvable field invalidates the whole plan.
func (r *Resolver) Resolve(t *descriptor.Type, parent *LayoutPlan) *LayoutPlan {
	switch t.Kind {
	case descriptor.Callback:
		ptr := r.target.PointerSize
		return &LayoutPlan{Name: t.CName, TotalSize: ptr, TotalAlignment: ptr, Valid: true}
	case descriptor.Opaque:
		return r.resolveOpaque(t)
	}

	skip := -1
	if parent != nil {
		skip = t.ParentMember()
	}
	return r.layout(t.CName, t.Members, parent, skip)
}

func (r *Resolver) resolveOpaque(t *descriptor.Type) *LayoutPlan {
	plan := &LayoutPlan{Name: t.CName, TotalSize: t.Size, TotalAlignment: t.Align, Valid: true}
	if t.Size == 0 || t.Align == 0 {
		plan.invalidate(&LayoutError{Type: t.CName, Err: fmt.Errorf("%w: opaque type without declared size", ErrUnresolvedType)})
	}
	return plan
}

// ResolveUnion lays out every substructure independently at offset 0.
// Size and alignment are the maximum over substructures.
func (r *Resolver) ResolveUnion(u *descriptor.Union) *UnionPlan {
	up := &UnionPlan{Name: u.CName, Valid: true, TotalAlignment: 1}

	for _, s := range u.Substructs {
		members := make([]descriptor.Member, len(s.Fields))
		for i := range s.Fields {
			members[i] = descriptor.Member{Field: &s.Fields[i]}
		}

		sp := r.layout(s.CName, members, nil, -1)
		up.Substructs = append(up.Substructs, sp)
		if !sp.Valid {
			up.Valid = false
			up.Err = sp.Err
			up.TotalSize = 0
			return up
		}

		up.TotalSize = max(up.TotalSize, sp.TotalSize)
		up.TotalAlignment = max(up.TotalAlignment, sp.TotalAlignment)
	}

	up.TotalSize = alignUp(up.TotalSize, up.TotalAlignment)
	return up
}

// packingWord tracks the storage unit shared by adjacent bitfields
type packingWord struct {
	size   uint // bytes
	open   bool
	offset uint
	used   uint // bits
}

func (w *packingWord) bits() uint { return w.size * 8 }

// close ends the open word and returns the cursor past it
func (w *packingWord) close(cursor uint) uint {
	if !w.open {
		return cursor
	}
	w.open = false
	return w.offset + w.size
}

// layout places members after parent. The member at index skip holds the
// parent instance and is represented by the inherited prefix.
func (r *Resolver) layout(name string, members []descriptor.Member, parent *LayoutPlan, skip int) *LayoutPlan {
	plan := &LayoutPlan{Name: name, Parent: parent, Valid: true, TotalAlignment: 1}
	word := packingWord{size: r.target.WordSize}

	var cursor uint
	if parent != nil {
		cursor = parent.TotalSize
		plan.TotalAlignment = max(plan.TotalAlignment, parent.TotalAlignment)
	}

	for i, m := range members {
		if i == skip {
			continue
		}

		if m.Union != nil {
			cursor = word.close(cursor)
			up := r.ResolveUnion(m.Union)
			if !up.Valid {
				plan.invalidate(&LayoutError{Type: name, Field: descriptor.Path{m.Union.CName}, Err: up.Err})
				return plan
			}
			rf := &ResolvedField{
				Descriptor:   descriptor.Field{Name: m.Union.Name, CName: m.Union.CName, Order: m.Union.Order, Type: "union"},
				ByteOffset:   alignUp(cursor, up.TotalAlignment),
				SizeBytes:    up.TotalSize,
				MinAlignment: up.TotalAlignment,
				Union:        up,
			}
			plan.own = append(plan.own, rf)
			plan.TotalAlignment = max(plan.TotalAlignment, rf.MinAlignment)
			cursor = rf.End()
			continue
		}

		f := *m.Field
		if f.IsBitfield() {
			cursor = r.placeBitfield(plan, &word, cursor, f)
			continue
		}

		cursor = word.close(cursor)
		ms, err := r.prober.Measure(f)
		if err != nil {
			plan.invalidate(&LayoutError{Type: name, Field: f.QualifiedPath(), Err: err})
			return plan
		}

		size := ms.Size
		if f.IsArray() {
			size *= f.ArrayLen
		}
		rf := &ResolvedField{
			Descriptor:   f,
			Class:        ms.Class,
			ByteOffset:   alignUp(cursor, ms.Align),
			SizeBytes:    size,
			MinAlignment: ms.Align,
			Probe:        ms.Probe,
		}
		plan.own = append(plan.own, rf)
		plan.TotalAlignment = max(plan.TotalAlignment, rf.MinAlignment)
		cursor = rf.End()
	}

	cursor = word.close(cursor)
	plan.TotalSize = alignUp(cursor, plan.TotalAlignment)
	return plan
}

// placeBitfield packs f into the open word, opening a new word when the
// bits do not fit. Returns the cursor, which only moves when a word closes.
func (r *Resolver) placeBitfield(plan *LayoutPlan, word *packingWord, cursor uint, f descriptor.Field) uint {
	rf := &ResolvedField{
		Descriptor:   f,
		Class:        r.prober.Classify(f),
		SizeBytes:    word.size,
		MinAlignment: word.size,
	}
	plan.TotalAlignment = max(plan.TotalAlignment, word.size)

	if f.Bits > word.bits() {
		// Spans more than one word; position it but never trust it
		cursor = word.close(cursor)
		words := (f.Bits + word.bits() - 1) / word.bits()
		rf.ByteOffset = alignUp(cursor, word.size)
		rf.SizeBytes = words * word.size
		rf.InvalidBitfield = true
		plan.own = append(plan.own, rf)

		err := &LayoutError{
			Type:  plan.Name,
			Field: f.QualifiedPath(),
			Err:   fmt.Errorf("%w: %d bits exceed %d bit word", ErrInvalidBitfield, f.Bits, word.bits()),
		}
		plan.Warnings = append(plan.Warnings, err.Error())
		Logger().Warn("bitfield wider than packing word",
			zap.String("type", plan.Name),
			zap.String("field", f.QualifiedPath().String()),
			zap.Uint("bits", f.Bits))
		return rf.End()
	}

	if !word.open || word.used+f.Bits > word.bits() {
		cursor = word.close(cursor)
		word.open = true
		word.offset = alignUp(cursor, word.size)
		word.used = 0
	}

	rf.ByteOffset = word.offset
	switch r.target.BitOrder {
	case target.MSBFirst:
		rf.BitOffset = word.bits() - word.used - f.Bits
	default:
		rf.BitOffset = word.used
	}
	word.used += f.Bits

	plan.own = append(plan.own, rf)
	return cursor
}
