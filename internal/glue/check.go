package glue

import (
	"fmt"

	"github.com/alexhholmes/abilayout/internal/analyzer"
)

// Mismatch is a reconstructed value that disagrees with the compiler
type Mismatch struct {
	Type      string
	Marker    string
	Native    uint // read back
	Predicted uint // reconstructed
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s is %d, predicted %d", m.Type, m.Marker, m.Native, m.Predicted)
}

// Check compares valid plans with the read-back table. Markers missing
// from the table are not compared.
func Check(rb analyzer.ReadBack, plans []*analyzer.LayoutPlan) []Mismatch {
	var out []Mismatch
	compare := func(typ, marker string, predicted uint) {
		native, ok := rb.Lookup(marker)
		if ok && native != predicted {
			out = append(out, Mismatch{Type: typ, Marker: marker, Native: native, Predicted: predicted})
		}
	}

	for _, plan := range plans {
		if !plan.Valid {
			continue
		}
		compare(plan.Name, analyzer.SizeMarker(plan.Name), plan.TotalSize)
		compare(plan.Name, analyzer.AlignMarker(plan.Name), plan.TotalAlignment)
		for _, f := range plan.Flatten() {
			if f.Descriptor.IsBitfield() || f.InvalidBitfield {
				continue
			}
			compare(plan.Name, analyzer.OffsetMarker(plan.Name, f.Descriptor.QualifiedPath()), f.ByteOffset)
		}
	}
	return out
}
