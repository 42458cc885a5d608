package access

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/alexhholmes/abilayout/internal/analyzer"
	"github.com/alexhholmes/abilayout/internal/descriptor"
)

// Request asks the glue collaborator for a getter/setter pair compiled
// against the native struct definition. An empty name is not requested.
type Request struct {
	Getter    string
	Setter    string
	Owner     string // owner cname
	FieldType descriptor.TypeRef
	Canonical descriptor.TypeRef // FieldType with aliases resolved
	Field     descriptor.Path
	Class     analyzer.Class
	Bitfield  bool
}

// OffsetRequest asks the glue collaborator for a function returning the
// native offset of a field
type OffsetRequest struct {
	Symbol string
	Owner  string
	Field  descriptor.Path
}

// GlueSink receives glue requests. Requests are only issued for fields
// that end up using them.
type GlueSink interface {
	RequestAccessor(Request)
	RequestOffset(OffsetRequest)
}

// Config describes what the run permits
type Config struct {
	// Mirror permits declaring layout-compatible mirror structs
	Mirror bool
	// AllowUnsafe permits pointer arithmetic on reconstructed offsets
	AllowUnsafe bool
	// Glue is the glue target; nil when the run emits no glue
	Glue GlueSink
}

// TypeInfo reports how field types are measured
type TypeInfo interface {
	Classify(descriptor.Field) analyzer.Class
	Canonical(descriptor.TypeRef) descriptor.TypeRef
}

type Selector struct {
	cfg    Config
	types  TypeInfo
	logger *zap.Logger
}

func NewSelector(cfg Config, types TypeInfo) *Selector {
	return &Selector{cfg: cfg, types: types, logger: Logger()}
}

// Select picks the cheapest safe strategy for one field. ok is false when
// the field gets no accessor; err is set when that needs a diagnostic.
// Only ExternalAccessor registers a glue request; a ComputedOffset plan
// names its offset symbol, which RequestOffsets turns into requests.
func (s *Selector) Select(owner *descriptor.Type, f analyzer.ResolvedField, ownerLayoutValid, glueAvailable bool) (plan Plan, ok bool, err error) {
	d := f.Descriptor

	if d.Hidden || d.Access != descriptor.Public || d.IsArray() {
		return Plan{}, false, nil
	}
	if !d.Readable && !d.Writable {
		return Plan{}, false, nil
	}

	plan = Plan{
		Owner:    owner,
		Field:    f,
		Readable: d.Readable,
		Writable: d.Writable,
		Callback: f.Class == analyzer.ClassCallback,
	}
	// By-value aggregates and types nothing is known about are exposed
	// by address only
	if f.Class == analyzer.ClassAggregate || f.Class == analyzer.ClassUnknown {
		plan.Writable = false
		if !plan.Readable {
			return Plan{}, false, nil
		}
	}

	bitfield := d.IsBitfield() || f.InvalidBitfield
	nested := !d.Path.IsZero()

	switch {
	case ownerLayoutValid && s.cfg.Mirror && !glueAvailable && !bitfield && !plan.Callback && !nested:
		plan.Strategy = EmbeddedMirror
		plan.Offset = OffsetExpr{Value: f.ByteOffset}
		return plan, true, nil

	case ownerLayoutValid && !bitfield && s.cfg.AllowUnsafe:
		plan.Strategy = ComputedOffset
		plan.Offset = OffsetExpr{Value: f.ByteOffset}
		if glueAvailable {
			plan.Offset.Symbol = fmt.Sprintf("%s_get_%s_offset", GluePrefix(owner), d.QualifiedPath().Ident())
		}
		return plan, true, nil

	case glueAvailable:
		plan.Strategy = ExternalAccessor
		prefix := GluePrefix(owner)
		ident := d.QualifiedPath().Ident()
		if plan.Readable {
			plan.Getter = fmt.Sprintf("%s_get_%s", prefix, ident)
		}
		if plan.Writable {
			plan.Setter = fmt.Sprintf("%s_set_%s", prefix, ident)
		}
		s.cfg.Glue.RequestAccessor(Request{
			Getter:    plan.Getter,
			Setter:    plan.Setter,
			Owner:     owner.CName,
			FieldType: d.Type,
			Canonical: s.types.Canonical(d.Type),
			Field:     d.QualifiedPath(),
			Class:     f.Class,
			Bitfield:  d.IsBitfield(),
		})
		return plan, true, nil
	}

	return Plan{}, false, fmt.Errorf("%s.%s: %w", owner.CName, d.QualifiedPath(), ErrGlueUnavailable)
}

// SelectType selects a strategy for every field declared by t. When the
// layout is not valid, fields are enumerated from the descriptor and
// routed to external accessors. Skipped fields are logged and returned
// as diagnostics; they never stop the rest of the type.
func (s *Selector) SelectType(t *descriptor.Type, res analyzer.Result) ([]Plan, []error) {
	valid := res.Status == analyzer.Valid && res.Plan != nil && res.Plan.Valid
	glue := s.cfg.Glue != nil

	var fields []analyzer.ResolvedField
	if valid {
		fields = res.Plan.Flatten()
	} else {
		for _, f := range DeclaredFields(t) {
			fields = append(fields, analyzer.ResolvedField{Descriptor: f, Class: s.types.Classify(f)})
		}
	}

	var plans []Plan
	var diags []error
	for _, f := range fields {
		plan, ok, err := s.Select(t, f, valid, glue)
		if err != nil {
			s.logger.Warn("field skipped",
				zap.String("type", t.CName),
				zap.String("field", f.Descriptor.QualifiedPath().String()),
				zap.Error(err))
			diags = append(diags, err)
			continue
		}
		if ok {
			plans = append(plans, plan)
		}
	}
	return plans, diags
}

// RequestOffsets asks sink for the offset function of every
// ComputedOffset plan that reads its offset from glue
func RequestOffsets(sink GlueSink, plans []Plan) {
	for _, p := range plans {
		if p.Strategy != ComputedOffset || p.Offset.Symbol == "" {
			continue
		}
		sink.RequestOffset(OffsetRequest{
			Symbol: p.Offset.Symbol,
			Owner:  p.Owner.CName,
			Field:  p.Path(),
		})
	}
}

// DeclaredFields returns t's fields including union-nested ones, without
// the leading parent instance field
func DeclaredFields(t *descriptor.Type) []descriptor.Field {
	skip := t.ParentMember()
	var fields []descriptor.Field
	for i, m := range t.Members {
		switch {
		case i == skip:
		case m.Field != nil:
			fields = append(fields, *m.Field)
		default:
			for _, s := range m.Union.Substructs {
				fields = append(fields, s.Fields...)
			}
		}
	}
	return fields
}
