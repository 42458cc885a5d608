package glue

import (
	"io"
	"sync"

	"github.com/alexhholmes/abilayout/internal/access"
	"github.com/alexhholmes/abilayout/internal/target"
)

// Collector gathers glue requests in arrival order and renders them as
// one C source file
type Collector struct {
	target *target.Target

	mu        sync.Mutex
	accessors []access.Request
	offsets   []access.OffsetRequest
}

func NewCollector(t *target.Target) *Collector {
	return &Collector{target: t}
}

func (c *Collector) RequestAccessor(req access.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessors = append(c.accessors, req)
}

func (c *Collector) RequestOffset(req access.OffsetRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets = append(c.offsets, req)
}

func (c *Collector) Accessors() []access.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]access.Request(nil), c.accessors...)
}

func (c *Collector) Offsets() []access.OffsetRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]access.OffsetRequest(nil), c.offsets...)
}

// Empty reports whether nothing was requested
func (c *Collector) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.accessors) == 0 && len(c.offsets) == 0
}

// Prototypes returns the declaration of every requested function
func (c *Collector) Prototypes() []string {
	var out []string
	for _, a := range c.render(c.Accessors()) {
		if a.Getter != "" {
			out = append(out, GetterProto(a.Getter, a.Value))
		}
		if a.Setter != "" {
			out = append(out, SetterProto(a.Setter, a.Value))
		}
	}
	for _, o := range c.Offsets() {
		out = append(out, OffsetProto(o.Symbol))
	}
	return out
}

type Options struct {
	// Includes are the native headers declaring the described types
	Includes []string
}

// RenderC writes the glue source
func (c *Collector) RenderC(w io.Writer, opts Options) error {
	var offsets []offsetData
	for _, o := range c.Offsets() {
		offsets = append(offsets, offsetData{Symbol: o.Symbol, Owner: o.Owner, Member: o.Field.String()})
	}
	return templates.ExecuteTemplate(w, "glue.c.tmpl", glueData{
		Includes:   opts.Includes,
		Prototypes: c.Prototypes(),
		Accessors:  c.render(c.Accessors()),
		Offsets:    offsets,
	})
}

func (c *Collector) render(reqs []access.Request) []accessorData {
	out := make([]accessorData, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, accessorData{
			Getter:    req.Getter,
			Setter:    req.Setter,
			Owner:     req.Owner,
			Member:    req.Field.String(),
			Value:     ValueType(c.target, req.Canonical, req.Class),
			Native:    req.FieldType.C(),
			ByAddress: ByAddress(req.Class),
		})
	}
	return out
}
