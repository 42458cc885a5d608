package glue

import (
	"embed"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"decl": decl,
}).ParseFS(templateFS, "templates/*.tmpl"))

type glueData struct {
	Includes   []string
	Prototypes []string
	Accessors  []accessorData
	Offsets    []offsetData
}

type accessorData struct {
	Getter    string
	Setter    string
	Owner     string
	Member    string // member designator, "a.b"
	Value     string // exchange type
	Native    string // declared C type
	ByAddress bool
}

type offsetData struct {
	Symbol string
	Owner  string
	Member string
}

type probeData struct {
	Includes   []string
	Constructs []construct
	Markers    []marker
}

type construct struct {
	Name    string
	Subject string
}

// marker is one printed "marker: value" line. Expr is a size_t C
// expression.
type marker struct {
	Name string
	Expr string
}
