package analyzer

import "sync"

// Pending is a value known only after the generated artifact has been
// built, or after another type has been resolved. The resolve function
// runs once, on the first Get.
type Pending[T any] struct {
	once    sync.Once
	resolve func() (T, bool)
	value   T
	ok      bool
}

func NewPending[T any](resolve func() (T, bool)) *Pending[T] {
	return &Pending[T]{resolve: resolve}
}

// Known returns an already resolved cell
func Known[T any](v T) *Pending[T] {
	p := &Pending[T]{value: v, ok: true}
	p.once.Do(func() {})
	return p
}

// Get resolves the cell if needed. ok is false when no source could
// supply the value.
func (p *Pending[T]) Get() (T, bool) {
	p.once.Do(func() {
		if p.resolve != nil {
			p.value, p.ok = p.resolve()
		}
	})
	return p.value, p.ok
}
