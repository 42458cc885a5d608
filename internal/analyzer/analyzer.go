package analyzer

import (
	"fmt"
	"sort"
)

// Verify checks a resolved plan against the layout invariants and
// returns one message per violation. An invalid plan has nothing to check.
func Verify(plan *LayoutPlan) []string {
	if plan == nil || !plan.Valid {
		return nil
	}

	var errs []string

	// Phase 1: alignment of every entry, union members included
	for _, f := range plan.Fields() {
		errs = append(errs, checkAlignment(plan.Name, f, 0)...)
	}

	// Phase 2: inherited prefix stays below the own fields
	if plan.Parent != nil {
		for _, f := range plan.Own() {
			if f.ByteOffset < plan.Parent.TotalSize {
				errs = append(errs, fmt.Sprintf("%s: %s at %d inside parent prefix [0, %d)",
					plan.Name, f.Descriptor.CName, f.ByteOffset, plan.Parent.TotalSize))
			}
		}
	}

	// Phase 3: offsets follow declaration order
	fields := plan.Fields()
	for i := 1; i < len(fields); i++ {
		if fields[i].ByteOffset < fields[i-1].ByteOffset {
			errs = append(errs, fmt.Sprintf("%s: %s at %d before %s at %d",
				plan.Name, fields[i].Descriptor.CName, fields[i].ByteOffset,
				fields[i-1].Descriptor.CName, fields[i-1].ByteOffset))
		}
	}

	// Phase 4: collisions and total size
	errs = append(errs, detectCollisions(plan.Name, fields)...)
	for _, f := range fields {
		if f.End() > plan.TotalSize {
			errs = append(errs, fmt.Sprintf("%s: %s [%d, %d) exceeds size %d",
				plan.Name, f.Descriptor.CName, f.ByteOffset, f.End(), plan.TotalSize))
		}
	}
	if plan.TotalAlignment > 0 && plan.TotalSize%plan.TotalAlignment != 0 {
		errs = append(errs, fmt.Sprintf("%s: size %d not a multiple of alignment %d",
			plan.Name, plan.TotalSize, plan.TotalAlignment))
	}

	return errs
}

func checkAlignment(owner string, f *ResolvedField, base uint) []string {
	var errs []string
	if f.MinAlignment > 0 && (base+f.ByteOffset)%f.MinAlignment != 0 {
		errs = append(errs, fmt.Sprintf("%s: %s at %d not aligned to %d",
			owner, f.Descriptor.QualifiedPath(), base+f.ByteOffset, f.MinAlignment))
	}
	if f.IsUnion() {
		for _, nested := range f.Union.Fields() {
			errs = append(errs, checkAlignment(owner, nested, base+f.ByteOffset)...)
		}
	}
	return errs
}

// detectCollisions reports overlapping non-bitfield entries. Bitfields
// sharing a packing word overlap by definition.
func detectCollisions(owner string, fields []*ResolvedField) []string {
	var fixed []*ResolvedField
	for _, f := range fields {
		if !f.Descriptor.IsBitfield() {
			fixed = append(fixed, f)
		}
	}
	sort.SliceStable(fixed, func(i, j int) bool {
		return fixed[i].ByteOffset < fixed[j].ByteOffset
	})

	var errs []string
	for i := 0; i < len(fixed)-1; i++ {
		r1, r2 := fixed[i], fixed[i+1]
		if r1.End() > r2.ByteOffset {
			errs = append(errs, fmt.Sprintf("%s: collision: %s [%d, %d) overlaps %s [%d, %d)",
				owner, r1.Descriptor.CName, r1.ByteOffset, r1.End(),
				r2.Descriptor.CName, r2.ByteOffset, r2.End()))
		}
	}
	return errs
}
