package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexhholmes/abilayout/internal/descriptor"
)

var (
	// ErrUnresolvedType reports a native type with no primitive mapping
	// that cannot be probed either.
	ErrUnresolvedType = errors.New("unresolved type")
	// ErrMissingParent reports a parent that is not registered or not yet resolvable.
	ErrMissingParent = errors.New("missing parent layout")
	// ErrInvalidParent reports a parent whose own layout is invalid.
	ErrInvalidParent   = errors.New("invalid parent layout")
	ErrInvalidBitfield = errors.New("invalid bitfield")
	ErrCycle           = errors.New("dependency cycle")
	ErrDuplicateType   = errors.New("duplicate type")
)

// LayoutError locates a layout failure at a type and optionally a field
type LayoutError struct {
	Type  string
	Field descriptor.Path
	Err   error
}

func (e *LayoutError) Error() string {
	if e.Field.IsZero() {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Type, e.Field, e.Err)
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

// CycleError lists the types that depend on themselves
type CycleError struct {
	Types []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(e.Types, ", "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}
