package analyzer

import "github.com/alexhholmes/abilayout/internal/descriptor"

// alignUp rounds n up to the next multiple of align
func alignUp(n, align uint) uint {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// Class is how a field's native type is measured
type Class int

const (
	ClassUnknown   Class = iota
	ClassPrimitive       // Fixed size from the target table
	ClassPointer         // Any pointer or handle reference
	ClassCallback        // Function pointer
	ClassAggregate       // Struct embedded by value, probed
)

func (c Class) String() string {
	switch c {
	case ClassPrimitive:
		return "primitive"
	case ClassPointer:
		return "pointer"
	case ClassCallback:
		return "callback"
	case ClassAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Measurement is the storage requirement of one field type
type Measurement struct {
	Class Class
	Size  uint
	Align uint
	Probe *Probe // set for aggregates only
}

// Read-back marker names. The probe program prints one "marker: value"
// line per marker.

func AlignMarker(cname string) string { return "alignof(" + cname + ")" }

func SizeMarker(cname string) string { return "sizeof(" + cname + ")" }

func OffsetMarker(cname string, path descriptor.Path) string {
	return cname + "." + path.String()
}
