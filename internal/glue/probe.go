package glue

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/alexhholmes/abilayout/internal/analyzer"
)

// RenderProbes writes a C program printing one "marker: value" line per
// measurement: the alignment and size of every probe construct subject,
// and the size and field offsets of every valid plan. Its output is the
// read-back table.
func RenderProbes(w io.Writer, probes []*analyzer.Probe, plans []*analyzer.LayoutPlan, opts Options) error {
	data := probeData{Includes: opts.Includes}

	seen := make(map[string]bool)
	addConstruct := func(subject string) {
		if seen[subject] {
			return
		}
		seen[subject] = true
		name := "abi_probe_" + subject
		data.Constructs = append(data.Constructs, construct{Name: name, Subject: subject})
		data.Markers = append(data.Markers,
			marker{Name: analyzer.AlignMarker(subject), Expr: fmt.Sprintf("offsetof(%s, %s)", name, analyzer.ProbeSubject)},
			marker{Name: analyzer.SizeMarker(subject), Expr: "sizeof(" + subject + ")"},
		)
	}

	for _, p := range probes {
		addConstruct(p.Type)
	}
	for _, plan := range plans {
		if !plan.Valid {
			continue
		}
		addConstruct(plan.Name)
		for _, f := range plan.Flatten() {
			if f.Descriptor.IsBitfield() || f.InvalidBitfield {
				continue
			}
			path := f.Descriptor.QualifiedPath()
			data.Markers = append(data.Markers, marker{
				Name: analyzer.OffsetMarker(plan.Name, path),
				Expr: fmt.Sprintf("offsetof(%s, %s)", plan.Name, path),
			})
		}
	}

	sort.SliceStable(data.Constructs, func(i, j int) bool {
		return data.Constructs[i].Name < data.Constructs[j].Name
	})
	return templates.ExecuteTemplate(w, "probe.c.tmpl", data)
}

// Table is a read-back table keyed by marker
type Table map[string]uint

func (t Table) Lookup(marker string) (uint, bool) {
	v, ok := t[marker]
	return v, ok
}

// ParseReadBack parses the output of the probe program
func ParseReadBack(b []byte) (Table, error) {
	t := make(Table)
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("failed to parse probe results: %w", err)
	}
	return t, nil
}

func LoadReadBack(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseReadBack(b)
}
