// Package driver runs a complete generation: load descriptors, resolve
// layouts, select access strategies and write the Go, glue and probe
// sources.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/alexhholmes/abilayout/internal/access"
	"github.com/alexhholmes/abilayout/internal/analyzer"
	"github.com/alexhholmes/abilayout/internal/codegen"
	"github.com/alexhholmes/abilayout/internal/descriptor"
	"github.com/alexhholmes/abilayout/internal/glue"
	"github.com/alexhholmes/abilayout/internal/parser"
	"github.com/alexhholmes/abilayout/internal/target"
)

// Options configure a run
type Options struct {
	// Generate are descriptor files or Go package patterns whose types
	// are emitted
	Generate []string
	// Include are descriptors whose types are referenced but not emitted
	Include []string

	OutDir  string
	Package string
	Target  *target.Target

	// GlueFilename enables the glue collaborator. Empty means no glue.
	GlueFilename string
	GlueIncludes []string

	// ProbeFilename is where the probe program is written, empty to skip
	ProbeFilename string
	// ProbeResults is the read-back table produced by running the probe
	// program. A missing file is not an error.
	ProbeResults string

	Mirror      bool
	AllowUnsafe bool
	Verify      bool

	Jobs   int
	Logger *zap.Logger
}

func (o *Options) defaults() error {
	if len(o.Generate) == 0 {
		return errors.New("nothing to generate")
	}
	if o.Target == nil {
		o.Target = target.Default()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.OutDir == "" {
		o.OutDir = "."
	}
	if o.Package == "" {
		o.Package = filepath.Base(filepath.Clean(o.OutDir))
		if o.Package == "." || o.Package == string(filepath.Separator) {
			o.Package = "abi"
		}
	}
	if o.Verify && len(o.GlueIncludes) == 0 {
		return errors.New("verification requires glue includes")
	}
	return nil
}

// Session is a loaded and resolved descriptor set
type Session struct {
	Registry *analyzer.Registry
	Target   *target.Target

	// Order is every registered type in resolution order
	Order []string
	// Generate holds the emitted types in resolution order
	Generate []*descriptor.Type
	// Table is the read-back table, nil when none was loaded
	Table glue.Table
}

// Load parses descriptors and resolves every layout
func Load(ctx context.Context, opts Options) (*Session, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	log := opts.Logger

	var regOpts []analyzer.Option
	regOpts = append(regOpts, analyzer.WithLogger(log))

	var table glue.Table
	if opts.ProbeResults != "" {
		t, err := glue.LoadReadBack(opts.ProbeResults)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn("probe results not found, using reconstructed layouts",
				zap.String("path", opts.ProbeResults))
		case err != nil:
			return nil, err
		default:
			table = t
			regOpts = append(regOpts, analyzer.WithReadBack(table))
		}
	}

	gen, err := parseInputs(ctx, opts.Generate)
	if err != nil {
		return nil, err
	}
	inc, err := parseInputs(ctx, opts.Include)
	if err != nil {
		return nil, err
	}
	inc, err = followIncludes(ctx, inc, append(gen, inc...))
	if err != nil {
		return nil, err
	}

	reg := analyzer.NewRegistry(opts.Target, regOpts...)
	s := &Session{Registry: reg, Target: opts.Target, Table: table}

	emit := make(map[string]bool)
	register := func(docs []*parser.Document, generate bool) {
		for _, doc := range docs {
			for _, a := range doc.Aliases {
				if err := reg.RegisterAlias(a.Name, a.Target); err != nil {
					log.Warn("alias skipped",
						zap.String("alias", a.Name),
						zap.String("file", doc.Path),
						zap.Error(err))
				}
			}
			for _, t := range doc.Types {
				if err := reg.Register(t); err != nil {
					log.Warn("type skipped",
						zap.String("type", t.CName),
						zap.String("file", doc.Path),
						zap.Error(err))
					continue
				}
				if generate && t.Kind != descriptor.Callback {
					emit[t.CName] = true
				}
			}
		}
	}
	register(gen, true)
	register(inc, false)

	order, err := reg.ResolveAll()
	var cycle *analyzer.CycleError
	if err != nil && !errors.As(err, &cycle) {
		return nil, err
	}
	s.Order = order
	for _, name := range order {
		if emit[name] {
			t, _ := reg.Type(name)
			s.Generate = append(s.Generate, t)
		}
	}
	return s, nil
}

// Plans returns the valid layout plans of emitted types
func (s *Session) Plans() []*analyzer.LayoutPlan {
	var out []*analyzer.LayoutPlan
	for _, t := range s.Generate {
		if res := s.Registry.Get(t.CName); res.Status == analyzer.Valid && res.Plan.Valid {
			out = append(out, res.Plan)
		}
	}
	return out
}

// Run performs a full generation
func Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	s, err := Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	log := opts.Logger

	var col *glue.Collector
	cfg := access.Config{Mirror: opts.Mirror, AllowUnsafe: opts.AllowUnsafe}
	if opts.GlueFilename != "" {
		col = glue.NewCollector(opts.Target)
		cfg.Glue = col
	}
	sel := access.NewSelector(cfg, s.Registry)

	report := newReport()
	var units []codegen.Unit
	for _, t := range s.Generate {
		res := s.Registry.Get(t.CName)
		// Without a known parent the handle conversion cannot be emitted
		if res.Status == analyzer.Unresolved {
			log.Warn("type skipped", zap.String("type", t.CName), zap.Error(res.Err))
			report.skip(t.CName, res.Err)
			continue
		}
		if res.Status == analyzer.Invalid {
			log.Info("layout not trusted, using external accessors",
				zap.String("type", t.CName), zap.Error(res.Err))
		}

		plans, diags := sel.SelectType(t, res)
		if col != nil {
			access.RequestOffsets(col, plans)
		}
		report.add(t.CName, res.Status, plans, diags)
		units = append(units, codegen.Unit{Type: t, Result: res, Access: plans})
	}

	gen := codegen.NewGenerator(codegen.Options{
		Package:  opts.Package,
		Target:   opts.Target,
		Includes: opts.GlueIncludes,
		Verify:   opts.Verify,
	}, s.Registry, units)

	var files []codegen.File
	for _, u := range units {
		files = append(files, codegen.GoFile(filepath.Join(opts.OutDir, codegen.FileName(u.Type)), gen.Generate(u)))
	}
	if codegen.NeedsSupport(units) {
		files = append(files, codegen.GoFile(filepath.Join(opts.OutDir, "abi_support.go"), gen.Support()))
	}

	glueOpts := glue.Options{Includes: opts.GlueIncludes}
	if col != nil {
		files = append(files, codegen.File{
			Path:   opts.GlueFilename,
			Render: func(w io.Writer) error { return col.RenderC(w, glueOpts) },
		})
	}
	if opts.ProbeFilename != "" {
		plans := s.Plans()
		probes := s.Registry.Prober().Constructs()
		files = append(files, codegen.File{
			Path:   opts.ProbeFilename,
			Render: func(w io.Writer) error { return glue.RenderProbes(w, probes, plans, glueOpts) },
		})
	}

	w := &codegen.Writer{Workers: opts.Jobs}
	if err := w.WriteAll(ctx, files); err != nil {
		return nil, err
	}
	for _, f := range files {
		report.Files = append(report.Files, f.Path)
	}

	if s.Table != nil {
		report.Mismatches = glue.Check(s.Table, s.Plans())
		for _, m := range report.Mismatches {
			log.Warn("layout mismatch", zap.String("type", m.Type), zap.Stringer("mismatch", m))
		}
	}

	log.Info("generation finished",
		zap.Int("generated", report.Generated),
		zap.Int("skipped", report.Skipped),
		zap.Any("strategies", report.Strategies))
	return report, nil
}

func isDescriptorFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go", ".xml", ".gapi", ".api":
	default:
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// parseInputs parses descriptor files, loading anything else as a Go
// package pattern
func parseInputs(ctx context.Context, inputs []string) ([]*parser.Document, error) {
	var docs []*parser.Document
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isDescriptorFile(in) {
			doc, err := parser.ParseFile(in)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}
		pkgDocs, err := parser.LoadPackages(in)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", in, err)
		}
		docs = append(docs, pkgDocs...)
	}
	return docs, nil
}

// followIncludes parses documents named by <include> elements that were
// not given explicitly. Included types are registered but never emitted.
func followIncludes(ctx context.Context, inc, all []*parser.Document) ([]*parser.Document, error) {
	seen := make(map[string]bool)
	for _, doc := range all {
		seen[filepath.Clean(doc.Path)] = true
	}

	queue := all
	for len(queue) > 0 {
		doc := queue[0]
		queue = queue[1:]
		for _, path := range doc.Includes {
			path = filepath.Clean(path)
			if seen[path] {
				continue
			}
			seen[path] = true
			if !isDescriptorFile(path) {
				parser.Logger().Debug("include not found", zap.String("path", path), zap.String("from", doc.Path))
				continue
			}
			docs, err := parseInputs(ctx, []string{path})
			if err != nil {
				return nil, err
			}
			inc = append(inc, docs...)
			queue = append(queue, docs...)
		}
	}
	return inc, nil
}
