package driver

import (
	"sort"

	"github.com/alexhholmes/abilayout/internal/access"
	"github.com/alexhholmes/abilayout/internal/analyzer"
	"github.com/alexhholmes/abilayout/internal/glue"
)

// TypeReport is the outcome for one type
type TypeReport struct {
	CName       string         `yaml:"cname"`
	Status      string         `yaml:"status"`
	Strategies  map[string]int `yaml:"strategies,omitempty"`
	Diagnostics []string       `yaml:"diagnostics,omitempty"`
}

// Report summarizes a run
type Report struct {
	Generated  int             `yaml:"generated"`
	Skipped    int             `yaml:"skipped"`
	Strategies map[string]int  `yaml:"strategies"`
	Types      []TypeReport    `yaml:"types"`
	Files      []string        `yaml:"files"`
	Mismatches []glue.Mismatch `yaml:"mismatches,omitempty"`
}

func newReport() *Report {
	return &Report{Strategies: make(map[string]int)}
}

func (r *Report) skip(cname string, err error) {
	r.Skipped++
	tr := TypeReport{CName: cname, Status: analyzer.Unresolved.String()}
	if err != nil {
		tr.Diagnostics = []string{err.Error()}
	}
	r.Types = append(r.Types, tr)
}

func (r *Report) add(cname string, status analyzer.Status, plans []access.Plan, diags []error) {
	r.Generated++
	tr := TypeReport{CName: cname, Status: status.String(), Strategies: make(map[string]int)}
	for _, p := range plans {
		tr.Strategies[p.Strategy.String()]++
		r.Strategies[p.Strategy.String()]++
	}
	for _, err := range diags {
		tr.Diagnostics = append(tr.Diagnostics, err.Error())
	}
	r.Types = append(r.Types, tr)
}

// Diagnostics returns every field diagnostic, sorted
func (r *Report) Diagnostics() []string {
	var out []string
	for _, t := range r.Types {
		out = append(out, t.Diagnostics...)
	}
	sort.Strings(out)
	return out
}
