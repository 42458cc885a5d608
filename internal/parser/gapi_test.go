package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexhholmes/abilayout/internal/descriptor"
)

func TestParseGAPI(t *testing.T) {
	doc, err := ParseGAPIFile("testdata/gtk.xml")
	if err != nil {
		t.Fatalf("ParseGAPIFile() error: %v", err)
	}

	if doc.Version != 3 {
		t.Errorf("Version = %d, want 3", doc.Version)
	}
	if len(doc.Includes) != 1 || doc.Includes[0] != "glib.xml" {
		t.Errorf("Includes = %v, want [glib.xml]", doc.Includes)
	}
	wantAliases := []Alias{{"GtkAllocation", "GdkRectangle"}, {"GtkStateType", "gint"}}
	if len(doc.Aliases) != len(wantAliases) {
		t.Fatalf("Aliases = %v, want %v", doc.Aliases, wantAliases)
	}
	for i, want := range wantAliases {
		if doc.Aliases[i] != want {
			t.Errorf("Aliases[%d] = %v, want %v", i, doc.Aliases[i], want)
		}
	}

	// GtkHidden is hidden
	names := make(map[string]*descriptor.Type)
	for _, typ := range doc.Types {
		names[typ.CName] = typ
	}
	if len(names) != 4 {
		t.Fatalf("found types %v, want 4", names)
	}
	if _, ok := names["GtkHidden"]; ok {
		t.Error("hidden type was parsed")
	}
	if cb := names["GtkCallback"]; cb.Kind != descriptor.Callback || cb.Namespace != "Gtk" {
		t.Errorf("GtkCallback = {%s %s}", cb.Kind, cb.Namespace)
	}
	if wp := names["GtkWidgetPath"]; wp.Kind != descriptor.Opaque {
		t.Errorf("GtkWidgetPath.Kind = %s, want opaque", wp.Kind)
	}

	// parser_version 3: permissions must be stated
	border := names["GtkBorder"].Fields()
	if len(border) != 4 {
		t.Fatalf("GtkBorder has %d fields, want 4", len(border))
	}
	perms := [][2]bool{{true, true}, {true, false}, {false, false}, {true, true}}
	for i, want := range perms {
		if border[i].Readable != want[0] || border[i].Writable != want[1] {
			t.Errorf("%s: readable=%v writable=%v, want %v", border[i].CName, border[i].Readable, border[i].Writable, want)
		}
		if border[i].Access != descriptor.Public {
			t.Errorf("%s: struct fields default to public", border[i].CName)
		}
	}
	if border[3].Bits != 3 {
		t.Errorf("flags.Bits = %d, want 3", border[3].Bits)
	}

	widget := names["GtkWidget"]
	if widget.Kind != descriptor.Object || widget.Parent != "GInitiallyUnowned" {
		t.Errorf("GtkWidget = {%s %s}", widget.Kind, widget.Parent)
	}
	if len(widget.Members) != 5 {
		t.Fatalf("GtkWidget has %d members, want 5", len(widget.Members))
	}
	if f := widget.Members[0].Field; f.Access != descriptor.Private {
		t.Errorf("object fields default to private, got %s", f.Access)
	}
	if f := widget.Members[2].Field; f.Access != descriptor.Public || f.Type != "GtkStateType" {
		t.Errorf("state = %+v", f)
	}

	u := widget.Members[3].Union
	if u == nil || u.Order != 3 || len(u.Substructs) != 2 {
		t.Fatalf("members[3] = %+v, want union of 2", widget.Members[3])
	}
	if got := u.Substructs[1].Fields[1].QualifiedPath().String(); got != "u.s.b" {
		t.Errorf("path = %q, want u.s.b", got)
	}
	if f := widget.Members[4].Field; f.ArrayLen != 8 || f.Order != 4 {
		t.Errorf("name = {[%d] order %d}, want [8] order 4", f.ArrayLen, f.Order)
	}

	for _, typ := range doc.Types {
		if err := typ.Validate(); err != nil {
			t.Errorf("%s: %v", typ.CName, err)
		}
	}
}

func TestParseGAPILegacyPermissions(t *testing.T) {
	doc, err := ParseGAPIFile("testdata/legacy.xml")
	if err != nil {
		t.Fatalf("ParseGAPIFile() error: %v", err)
	}
	if doc.Version != 1 {
		t.Errorf("Version = %d, want default 1", doc.Version)
	}

	fields := doc.Types[0].Fields()
	tests := []struct {
		readable, writable, callback bool
	}{
		{true, true, false},
		{false, true, false},
		{true, false, true},
	}
	for i, tt := range tests {
		f := fields[i]
		if f.Readable != tt.readable || f.Writable != tt.writable || f.Callback != tt.callback {
			t.Errorf("%s = {r=%v w=%v cb=%v}, want %+v", f.CName, f.Readable, f.Writable, f.Callback, tt)
		}
	}
}

func TestParseGAPIUnionStructWithOneField(t *testing.T) {
	const input = `<api parser_version="3"><namespace name="Test">
<struct cname="TestEv" name="Ev">
  <field cname="kind" type="gint" readable="true"/>
  <union cname="u" name="U">
    <field cname="raw" type="gint64" readable="true"/>
    <struct cname="s" name="S"><field cname="x" type="gint" bits="3" readable="true"/></struct>
  </union>
</struct>
</namespace></api>`

	doc, err := ParseGAPI(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseGAPI() error: %v", err)
	}
	u := doc.Types[0].Members[1].Union
	if u == nil || len(u.Substructs) != 2 {
		t.Fatalf("union = %+v, want 2 substructures", u)
	}
	if !u.Substructs[0].Single || u.Substructs[1].Single {
		t.Errorf("Single = %v, %v; want true, false", u.Substructs[0].Single, u.Substructs[1].Single)
	}
	if got := u.Substructs[0].Fields[0].QualifiedPath().String(); got != "u.raw" {
		t.Errorf("field path = %q, want u.raw", got)
	}
	if got := u.Substructs[1].Fields[0].QualifiedPath().String(); got != "u.s.x" {
		t.Errorf("struct field path = %q, want u.s.x", got)
	}
}

func TestParseGAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{"not xml", "<api", "invalid XML"},
		{"wrong root", "<gir/>", "want <api>"},
		{"bad version", `<api parser_version="x"/>`, "parser_version"},
		{"bad bits", `<api><namespace name="N"><struct cname="S"><field cname="f" type="guint" bits="wide"/></struct></namespace></api>`, "not a number"},
		{"bad boolean", `<api><namespace name="N"><struct cname="S"><field cname="f" type="gint" hidden="maybe"/></struct></namespace></api>`, "not a boolean"},
		{"array without length", `<api><namespace name="N"><struct cname="S"><field cname="f" type="gint" array="true"/></struct></namespace></api>`, "array without array_len"},
		{"stray union child", `<api><namespace name="N"><struct cname="S"><union cname="u"><method/></union></struct></namespace></api>`, "unexpected <method>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGAPI(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want substring %q", err, tt.errMsg)
			}
		})
	}
}

func TestParseGAPIIncludeResolution(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "glib.xml"), `<api/>`)
	write(t, filepath.Join(dir, "gtk.xml"), `<api><include xml="glib.xml"/><include xml="/abs/other.xml"/></api>`)

	doc, err := ParseGAPIFile(filepath.Join(dir, "gtk.xml"))
	if err != nil {
		t.Fatalf("ParseGAPIFile() error: %v", err)
	}
	if doc.Includes[0] != filepath.Join(dir, "glib.xml") {
		t.Errorf("Includes[0] = %q, want resolved next to the document", doc.Includes[0])
	}
	if doc.Includes[1] != "/abs/other.xml" {
		t.Errorf("Includes[1] = %q, want unchanged", doc.Includes[1])
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
