package analyzer

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/alexhholmes/abilayout/internal/descriptor"
	"github.com/alexhholmes/abilayout/internal/target"
)

// Status is the tri-state outcome of resolving a type
type Status int

const (
	Unresolved Status = iota // Unknown type, missing parent or cycle
	Valid
	Invalid // Known type whose layout cannot be trusted
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unresolved"
	}
}

// Result of a registry lookup. Plan is nil only when Status is Unresolved.
type Result struct {
	Status Status
	Plan   *LayoutPlan
	Err    error
}

// Option configures a Registry
type Option func(*Registry)

// WithReadBack makes probe values measured on the target take priority
// over reconstructed ones
func WithReadBack(rb ReadBack) Option {
	return func(r *Registry) {
		r.readBack = rb
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// Registry maps native type names to their layout for one generation
// run. Plans are computed lazily, parents first, and never recomputed.
type Registry struct {
	target   *target.Target
	readBack ReadBack
	logger   *zap.Logger

	types      map[string]*descriptor.Type
	aliases    map[string]descriptor.TypeRef // alias → canonical
	results    map[string]Result
	inProgress map[string]bool

	prober   *Prober
	resolver *Resolver
}

func NewRegistry(t *target.Target, opts ...Option) *Registry {
	r := &Registry{
		target:     t,
		types:      make(map[string]*descriptor.Type),
		aliases:    make(map[string]descriptor.TypeRef),
		results:    make(map[string]Result),
		inProgress: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = Logger()
	}
	r.prober = newProber(t, r, r.readBack)
	r.resolver = NewResolver(t, r.prober)
	return r
}

func (r *Registry) Target() *target.Target { return r.target }

func (r *Registry) Prober() *Prober { return r.prober }

func (r *Registry) Resolver() *Resolver { return r.resolver }

// Register adds a type descriptor. Registering the same cname twice is an error.
func (r *Registry) Register(t *descriptor.Type) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, ok := r.types[t.CName]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, t.CName)
	}
	if _, ok := r.aliases[t.CName]; ok {
		return fmt.Errorf("%w: %s is an alias", ErrDuplicateType, t.CName)
	}
	r.types[t.CName] = t
	return nil
}

// RegisterAlias makes name resolve to the same layout as canonical.
// A name already registered as a type cannot become an alias.
func (r *Registry) RegisterAlias(name string, canonical descriptor.TypeRef) error {
	if _, ok := r.types[name]; ok {
		return fmt.Errorf("%w: alias %s names a registered type", ErrDuplicateType, name)
	}
	r.aliases[name] = canonical
	return nil
}

// Canonical follows the alias chain of ref's base name. Pointer
// references are returned as they are.
func (r *Registry) Canonical(ref descriptor.TypeRef) descriptor.TypeRef {
	// Bounded so an alias cycle cannot loop forever
	for range len(r.aliases) + 1 {
		if ref.IsPointer() {
			return ref
		}
		next, ok := r.aliases[ref.Base()]
		if !ok {
			return ref
		}
		ref = next
	}
	return ref
}

// Type returns the descriptor registered under name or one of its aliases
func (r *Registry) Type(name string) (*descriptor.Type, bool) {
	ref := r.Canonical(descriptor.TypeRef(name))
	if ref.IsPointer() {
		return nil, false
	}
	t, ok := r.types[ref.Base()]
	return t, ok
}

// Types returns every registered descriptor sorted by cname
func (r *Registry) Types() []*descriptor.Type {
	out := make([]*descriptor.Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CName < out[j].CName
	})
	return out
}

// Classify reports how a field's type is measured on this registry's target
func (r *Registry) Classify(f descriptor.Field) Class {
	return r.prober.Classify(f)
}

// Get returns the layout of name, resolving it and its parents on first
// use. Aliases share the canonical type's plan instance.
func (r *Registry) Get(name string) Result {
	t, ok := r.Type(name)
	if !ok {
		return Result{Status: Unresolved, Err: &LayoutError{Type: name, Err: ErrUnresolvedType}}
	}
	cname := t.CName

	if res, ok := r.results[cname]; ok {
		return res
	}
	if r.inProgress[cname] {
		return Result{Status: Unresolved, Err: &LayoutError{Type: cname, Err: ErrCycle}}
	}
	r.inProgress[cname] = true
	defer delete(r.inProgress, cname)

	res := r.resolve(t)
	r.results[cname] = res

	if res.Status == Valid {
		r.logger.Debug("resolved layout",
			zap.String("type", cname),
			zap.Uint("size", res.Plan.TotalSize),
			zap.Uint("align", res.Plan.TotalAlignment))
	} else {
		r.logger.Warn("layout not resolved",
			zap.String("type", cname),
			zap.Stringer("status", res.Status),
			zap.Error(res.Err))
	}
	return res
}

func (r *Registry) resolve(t *descriptor.Type) Result {
	var parent *LayoutPlan
	if t.Parent != "" {
		pr := r.Get(t.Parent)
		switch pr.Status {
		case Unresolved:
			return Result{
				Status: Unresolved,
				Err:    &LayoutError{Type: t.CName, Err: fmt.Errorf("%w: %s: %w", ErrMissingParent, t.Parent, pr.Err)},
			}
		case Invalid:
			err := &LayoutError{Type: t.CName, Err: fmt.Errorf("%w: %s", ErrInvalidParent, t.Parent)}
			plan := &LayoutPlan{Name: t.CName, Parent: pr.Plan}
			plan.invalidate(err)
			return Result{Status: Invalid, Plan: plan, Err: err}
		}
		parent = pr.Plan
	}

	plan := r.resolver.Resolve(t, parent)
	if !plan.Valid {
		return Result{Status: Invalid, Plan: plan, Err: plan.Err}
	}
	return Result{Status: Valid, Plan: plan}
}

// ParentChain walks the parent pointers of name, child first. The
// status is Unresolved when a link is unknown or the chain cycles,
// Invalid when any link has an invalid layout, Valid otherwise.
func (r *Registry) ParentChain(name string) ([]string, Status) {
	var chain []string
	visited := make(map[string]bool)

	cur := name
	for cur != "" {
		t, ok := r.Type(cur)
		if !ok || visited[t.CName] {
			return chain, Unresolved
		}
		visited[t.CName] = true
		chain = append(chain, t.CName)
		cur = t.Parent
	}

	// Root first, so each Get finds its parent already cached
	status := Valid
	for i := len(chain) - 1; i >= 0; i-- {
		switch r.Get(chain[i]).Status {
		case Unresolved:
			return chain, Unresolved
		case Invalid:
			status = Invalid
		}
	}
	return chain, status
}

// CanReuseParent reports whether name's parent layout can serve as its
// prefix: Valid with a plan, Invalid, or Unresolved for an unknown parent.
func (r *Registry) CanReuseParent(name string) Status {
	t, ok := r.Type(name)
	if !ok {
		return Unresolved
	}
	if t.Parent == "" {
		return Valid
	}
	_, status := r.ParentChain(t.Parent)
	return status
}

// Order returns registered types so that every parent and every by-value
// field type precedes its dependents. Types on a cycle are appended last
// and reported through an error wrapping ErrCycle.
func (r *Registry) Order() ([]string, error) {
	types := r.Types()
	ids := make(map[string]int64, len(types))
	g := simple.NewDirectedGraph()
	for i, t := range types {
		ids[t.CName] = int64(i)
		g.AddNode(simple.Node(i))
	}

	var selfCycles []string
	edge := func(from string, to int64) {
		dep, ok := r.Type(from)
		if !ok {
			return
		}
		id := ids[dep.CName]
		if id == to {
			selfCycles = append(selfCycles, dep.CName)
			return
		}
		g.SetEdge(g.NewEdge(simple.Node(id), simple.Node(to)))
	}

	for i, t := range types {
		if t.Parent != "" {
			edge(t.Parent, int64(i))
		}
		for _, f := range t.AllFields() {
			if f.Callback {
				continue
			}
			if ref := r.Canonical(f.Type); !ref.IsPointer() {
				edge(ref.Base(), int64(i))
			}
		}
	}

	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return nodes[i].ID() < nodes[j].ID()
		})
	})

	var order, cyclic []string
	for _, n := range sorted {
		if n != nil {
			order = append(order, types[n.ID()].CName)
		}
	}

	var unorderable topo.Unorderable
	if errors.As(err, &unorderable) {
		for _, component := range unorderable {
			for _, n := range component {
				cyclic = append(cyclic, types[n.ID()].CName)
			}
		}
	} else if err != nil {
		return nil, err
	}

	// A type referencing itself by value is its own cycle
	for _, name := range selfCycles {
		order = remove(order, name)
		cyclic = append(cyclic, name)
	}

	if len(cyclic) == 0 {
		return order, nil
	}
	sort.Strings(cyclic)
	cyclic = dedupe(cyclic)
	return append(order, cyclic...), &CycleError{Types: cyclic}
}

// ResolveAll resolves every registered type in dependency order. Types
// on a cycle are recorded as Unresolved.
func (r *Registry) ResolveAll() ([]string, error) {
	order, err := r.Order()
	var cycle *CycleError
	if err != nil && !errors.As(err, &cycle) {
		return nil, err
	}
	if cycle != nil {
		r.logger.Warn("types skipped", zap.Error(err))
		for _, name := range cycle.Types {
			r.results[name] = Result{Status: Unresolved, Err: &LayoutError{Type: name, Err: ErrCycle}}
		}
	}

	for _, name := range order {
		r.Get(name)
	}
	return order, err
}

func remove(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
