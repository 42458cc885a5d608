package codegen

import (
	"fmt"
	"go/token"
	"sort"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/alexhholmes/abilayout/internal/access"
	"github.com/alexhholmes/abilayout/internal/analyzer"
	"github.com/alexhholmes/abilayout/internal/descriptor"
	"github.com/alexhholmes/abilayout/internal/glue"
	"github.com/alexhholmes/abilayout/internal/target"
)

const header = "Code generated by abigen. DO NOT EDIT."

// Options configure emission
type Options struct {
	Package string
	Target  *target.Target

	// Includes are native headers added to the cgo preamble. Required by
	// Verify.
	Includes []string

	// Verify emits Verify<Name>ABI functions comparing reconstructed
	// layouts with the compiler's
	Verify bool
}

// Types resolves aliases of field types
type Types interface {
	Canonical(descriptor.TypeRef) descriptor.TypeRef
}

// Unit is everything emitted for one type
type Unit struct {
	Type   *descriptor.Type
	Result analyzer.Result
	Access []access.Plan
}

func (u Unit) validPlan() *analyzer.LayoutPlan {
	if u.Result.Status == analyzer.Valid && u.Result.Plan != nil && u.Result.Plan.Valid {
		return u.Result.Plan
	}
	return nil
}

// Generator emits one Go file per type
type Generator struct {
	opts      Options
	types     Types
	generated map[string]string // cname → Go type name
}

// NewGenerator creates a generator for units. Parent conversions are only
// emitted between generated types.
func NewGenerator(opts Options, types Types, units []Unit) *Generator {
	if opts.Target == nil {
		opts.Target = target.Default()
	}
	g := &Generator{opts: opts, types: types, generated: make(map[string]string)}
	for _, u := range units {
		g.generated[u.Type.CName] = TypeName(u.Type)
	}
	return g
}

// TypeName is the exported Go name of a native type
func TypeName(t *descriptor.Type) string {
	name := t.Name
	if name == "" {
		name = t.CName
	}
	name = strings.ReplaceAll(name, ".", "_")
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// FileName is the output file of a type, "GtkTextIter" → "gtk_text_iter.go"
func FileName(t *descriptor.Type) string {
	return strings.ToLower(nativeFileName(t.CName)) + ".go"
}

// typeGen holds per-type emission state
type typeGen struct {
	*Generator
	unit   Unit
	name   string // Go type name
	plan   *analyzer.LayoutPlan
	used   map[string]bool
	protos []string
	consts []jen.Code
	vars   []jen.Code
}

// Generate returns the file for one unit
func (g *Generator) Generate(u Unit) *jen.File {
	tg := &typeGen{
		Generator: g,
		unit:      u,
		name:      TypeName(u.Type),
		plan:      u.validPlan(),
		used:      map[string]bool{"Pointer": true},
	}
	return tg.file()
}

// NeedsSupport reports whether any unit stores callbacks
func NeedsSupport(units []Unit) bool {
	for _, u := range units {
		for _, p := range u.Access {
			if p.Callback && p.Writable {
				return true
			}
		}
	}
	return false
}

// Support returns the package file shared by generated types
func (g *Generator) Support() *jen.File {
	f := jen.NewFile(g.opts.Package)
	f.HeaderComment(header)

	f.Type().Id("callbackKey").Struct(
		jen.Id("owner").Qual("unsafe", "Pointer"),
		jen.Id("field").String(),
	)

	f.Comment("callbacks keeps Go values referenced by stored function pointers alive")
	f.Var().Id("callbacks").Qual("sync", "Map")

	f.Func().Id("retainCallback").Params(
		jen.Id("owner").Qual("unsafe", "Pointer"),
		jen.Id("field").String(),
		jen.Id("keep").Any(),
	).Block(
		jen.Id("key").Op(":=").Id("callbackKey").Values(jen.Id("owner"), jen.Id("field")),
		jen.If(jen.Id("keep").Op("==").Nil()).Block(
			jen.Id("callbacks").Dot("Delete").Call(jen.Id("key")),
			jen.Return(),
		),
		jen.Id("callbacks").Dot("Store").Call(jen.Id("key"), jen.Id("keep")),
	)
	return f
}

func (tg *typeGen) file() *jen.File {
	f := jen.NewFile(tg.opts.Package)
	f.HeaderComment(header)

	tg.handle(f)
	if tg.plan != nil {
		tg.consts = append(tg.consts,
			jen.Id("Sizeof"+tg.name).Op("=").Lit(int(tg.plan.TotalSize)),
			jen.Id("Alignof"+tg.name).Op("=").Lit(int(tg.plan.TotalAlignment)),
		)
	}
	mirror := tg.mirror()
	accessors := tg.accessors()
	verify := tg.verify()

	if len(tg.consts) > 0 {
		f.Const().Defs(tg.consts...)
	}
	if len(tg.vars) > 0 {
		f.Var().Defs(tg.vars...)
	}
	for _, c := range mirror {
		f.Add(c).Line()
	}
	for _, c := range accessors {
		f.Add(c).Line()
	}
	if verify != nil {
		f.Add(verify)
	}

	if preamble := tg.preamble(); preamble != "" {
		f.CgoPreamble(preamble)
	}
	return f
}

func (tg *typeGen) handle(f *jen.File) {
	t := tg.unit.Type
	name := tg.name

	f.Commentf("%s wraps a native %s", name, t.CName)
	f.Type().Id(name).Struct(jen.Id("ptr").Qual("unsafe", "Pointer"))

	f.Commentf("%sFromPointer wraps ptr, which must point to a %s", name, t.CName)
	f.Func().Id(name+"FromPointer").Params(jen.Id("ptr").Qual("unsafe", "Pointer")).Op("*").Id(name).Block(
		jen.Return(jen.Op("&").Id(name).Values(jen.Dict{jen.Id("ptr"): jen.Id("ptr")})),
	)

	f.Func().Params(jen.Id("p").Op("*").Id(name)).Id("Pointer").Params().Qual("unsafe", "Pointer").Block(
		jen.Return(jen.Id("p").Dot("ptr")),
	)

	if parent, ok := tg.generated[t.Parent]; ok && t.Parent != "" {
		method := "As" + parent
		tg.used[method] = true
		f.Commentf("%s views the instance as its parent", method)
		f.Func().Params(jen.Id("p").Op("*").Id(name)).Id(method).Params().Op("*").Id(parent).Block(
			jen.Return(jen.Id(parent + "FromPointer").Call(jen.Id("p").Dot("ptr"))),
		)
	}
}

func (tg *typeGen) mirrorName() string {
	r := []rune(tg.name)
	r[0] = unicode.ToLower(r[0])
	return string(r) + "Mirror"
}

// mirror declares a layout-compatible struct holding the mirrored fields
// at their offsets with explicit padding between them
func (tg *typeGen) mirror() []jen.Code {
	var fields []access.Plan
	for _, p := range tg.unit.Access {
		if p.Strategy == access.EmbeddedMirror {
			fields = append(fields, p)
		}
	}
	if len(fields) == 0 || tg.plan == nil {
		return nil
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Field.ByteOffset < fields[j].Field.ByteOffset
	})

	members := []jen.Code{jen.Id("_").Qual("structs", "HostLayout")}
	var cursor uint
	for _, p := range fields {
		rf := p.Field
		if rf.ByteOffset > cursor {
			members = append(members, jen.Id("_").Index(jen.Lit(int(rf.ByteOffset-cursor))).Byte())
		}
		members = append(members, jen.Id(p.Name()).Add(tg.mirrorType(p)).Commentf("offset %d", rf.ByteOffset))
		cursor = rf.ByteOffset + rf.SizeBytes
	}
	if tg.plan.TotalSize > cursor {
		members = append(members, jen.Id("_").Index(jen.Lit(int(tg.plan.TotalSize-cursor))).Byte())
	}

	name := tg.mirrorName()
	return []jen.Code{
		jen.Commentf("%s mirrors the layout of %s", name, tg.unit.Type.CName).Line().
			Type().Id(name).Struct(members...),
		jen.Var().Id("_").Op("=").Index(jen.Lit(1)).Struct().Values().Index(
			jen.Qual("unsafe", "Sizeof").Call(jen.Id(name).Values()).Op("-").Id("Sizeof" + tg.name),
		),
		jen.Func().Params(jen.Id("p").Op("*").Id(tg.name)).Id("mirror").Params().Op("*").Id(name).Block(
			jen.Return(jen.Parens(jen.Op("*").Id(name)).Call(jen.Id("p").Dot("ptr"))),
		),
	}
}

func (tg *typeGen) mirrorType(p access.Plan) jen.Code {
	if p.Field.Class == analyzer.ClassAggregate {
		return jen.Index(jen.Lit(int(p.Field.SizeBytes))).Byte()
	}
	return tg.goType(p)
}

// goType is the Go type accessors exchange values in
func (tg *typeGen) goType(p access.Plan) jen.Code {
	if p.Field.Class == analyzer.ClassPrimitive {
		canonical := tg.types.Canonical(p.Field.Descriptor.Type)
		if prim, ok := tg.opts.Target.Primitive(canonical.Base()); ok {
			return goIdent(prim.Go)
		}
	}
	return jen.Qual("unsafe", "Pointer")
}

func goIdent(name string) jen.Code {
	if pkg, sel, ok := strings.Cut(name, "."); ok {
		return jen.Qual(pkg, sel)
	}
	return jen.Id(name)
}

// cType is the cgo spelling of a glue exchange type
func cType(exchange string) jen.Code {
	if exchange == glue.VoidPtr {
		return jen.Qual("unsafe", "Pointer")
	}
	return jen.Qual("C", exchange)
}

// methodName returns an unused accessor name
func (tg *typeGen) methodName(name string) string {
	for tg.used[name] {
		name += "Field"
	}
	tg.used[name] = true
	return name
}

func (tg *typeGen) accessors() []jen.Code {
	var out []jen.Code
	for _, p := range tg.unit.Access {
		getter := tg.methodName(p.Name())
		setter := ""
		if p.Writable {
			setter = tg.methodName("Set" + p.Name())
		}

		switch p.Strategy {
		case access.EmbeddedMirror:
			out = append(out, tg.mirrorAccessors(p, getter, setter)...)
		case access.ComputedOffset:
			out = append(out, tg.offsetAccessors(p, getter, setter)...)
		case access.ExternalAccessor:
			out = append(out, tg.externalAccessors(p, getter, setter)...)
		}
	}
	return out
}

func (tg *typeGen) recv() *jen.Statement {
	return jen.Id("p").Op("*").Id(tg.name)
}

func byAddress(p access.Plan) bool {
	return glue.ByAddress(p.Field.Class)
}

func (tg *typeGen) mirrorAccessors(p access.Plan, getter, setter string) []jen.Code {
	field := jen.Id("p").Dot("mirror").Call().Dot(p.Name())
	path := p.Path().String()

	var out []jen.Code
	if p.Readable {
		if byAddress(p) {
			out = append(out, jen.Commentf("%s returns the address of %s", getter, path).Line().
				Func().Params(tg.recv()).Id(getter).Params().Qual("unsafe", "Pointer").Block(
				jen.Return(jen.Qual("unsafe", "Pointer").Call(jen.Op("&").Add(field))),
			))
		} else {
			out = append(out, jen.Commentf("%s returns %s", getter, path).Line().
				Func().Params(tg.recv()).Id(getter).Params().Add(tg.goType(p)).Block(
				jen.Return(field),
			))
		}
	}
	if setter != "" {
		out = append(out, jen.Func().Params(tg.recv()).Id(setter).Params(jen.Id("v").Add(tg.goType(p))).Block(
			field.Clone().Op("=").Id("v"),
		))
	}
	return out
}

func (tg *typeGen) offsetAccessors(p access.Plan, getter, setter string) []jen.Code {
	off := "off" + tg.name + p.Name()
	if p.Offset.Symbol != "" {
		tg.protos = append(tg.protos, glue.OffsetProto(p.Offset.Symbol))
		tg.vars = append(tg.vars, jen.Id(off).Op("=").Uintptr().Call(jen.Qual("C", p.Offset.Symbol).Call()))
	} else {
		tg.consts = append(tg.consts, jen.Id(off).Op("=").Lit(int(p.Offset.Value)))
	}

	addr := jen.Qual("unsafe", "Add").Call(jen.Id("p").Dot("ptr"), jen.Id(off))
	path := p.Path().String()

	var out []jen.Code
	if p.Readable {
		if byAddress(p) {
			out = append(out, jen.Commentf("%s returns the address of %s", getter, path).Line().
				Func().Params(tg.recv()).Id(getter).Params().Qual("unsafe", "Pointer").Block(
				jen.Return(addr.Clone()),
			))
		} else {
			out = append(out, jen.Commentf("%s returns %s", getter, path).Line().
				Func().Params(tg.recv()).Id(getter).Params().Add(tg.goType(p)).Block(
				jen.Return(jen.Op("*").Parens(jen.Op("*").Add(tg.goType(p))).Parens(addr.Clone())),
			))
		}
	}
	if setter == "" {
		return out
	}

	store := jen.Op("*").Parens(jen.Op("*").Add(tg.goType(p))).Parens(addr.Clone())
	if p.Callback {
		out = append(out, tg.callbackSetter(setter, path, store.Op("=").Id("fn")))
		return out
	}
	out = append(out, jen.Func().Params(tg.recv()).Id(setter).Params(jen.Id("v").Add(tg.goType(p))).Block(
		store.Op("=").Id("v"),
	))
	return out
}

// callbackSetter stores a native function pointer. keep is held until
// the field is set again, so whatever fn calls back into stays alive.
func (tg *typeGen) callbackSetter(setter, path string, store jen.Code) jen.Code {
	return jen.Commentf("%s stores fn in %s and retains keep until the next call", setter, path).Line().
		Func().Params(tg.recv()).Id(setter).Params(
		jen.Id("fn").Qual("unsafe", "Pointer"),
		jen.Id("keep").Any(),
	).Block(
		store,
		jen.Id("retainCallback").Call(jen.Id("p").Dot("ptr"), jen.Lit(path), jen.Id("keep")),
	)
}

func (tg *typeGen) externalAccessors(p access.Plan, getter, setter string) []jen.Code {
	canonical := tg.types.Canonical(p.Field.Descriptor.Type)
	exchange := glue.ValueType(tg.opts.Target, canonical, p.Field.Class)
	path := p.Path().String()

	var out []jen.Code
	if p.Getter != "" && p.Readable {
		tg.protos = append(tg.protos, glue.GetterProto(p.Getter, exchange))
		call := jen.Qual("C", p.Getter).Call(jen.Id("p").Dot("ptr"))

		var ret jen.Code = call
		if exchange != glue.VoidPtr {
			ret = jen.Add(tg.goType(p)).Call(call)
		}
		doc := fmt.Sprintf("%s returns %s", getter, path)
		if byAddress(p) {
			doc = fmt.Sprintf("%s returns the address of %s", getter, path)
		}
		result := tg.goType(p)
		if byAddress(p) {
			result = jen.Qual("unsafe", "Pointer")
		}
		out = append(out, jen.Comment(doc).Line().
			Func().Params(tg.recv()).Id(getter).Params().Add(result).Block(jen.Return(ret)))
	}

	if p.Setter == "" || setter == "" {
		return out
	}
	tg.protos = append(tg.protos, glue.SetterProto(p.Setter, exchange))

	if p.Callback {
		out = append(out, tg.callbackSetter(setter, path,
			jen.Qual("C", p.Setter).Call(jen.Id("p").Dot("ptr"), jen.Id("fn"))))
		return out
	}

	var arg jen.Code = jen.Id("v")
	if exchange != glue.VoidPtr {
		arg = jen.Add(cType(exchange)).Call(jen.Id("v"))
	}
	out = append(out, jen.Func().Params(tg.recv()).Id(setter).Params(jen.Id("v").Add(tg.goType(p))).Block(
		jen.Qual("C", p.Setter).Call(jen.Id("p").Dot("ptr"), arg),
	))
	return out
}

// verify compares the reconstructed layout with the one cgo sees
func (tg *typeGen) verify() jen.Code {
	if !tg.opts.Verify || tg.plan == nil {
		return nil
	}
	t := tg.unit.Type
	probe := "abi_probe_" + t.CName

	check := func(got jen.Code, want jen.Code, marker string) jen.Code {
		return jen.If(jen.Id("got").Op(":=").Add(got), jen.Id("got").Op("!=").Add(want)).Block(
			jen.Id("errs").Op("=").Append(jen.Id("errs"), jen.Qual("fmt", "Errorf").Call(
				jen.Lit(marker+" is %d, predicted %d"), jen.Id("got"), want,
			)),
		)
	}

	body := []jen.Code{
		jen.Var().Id("errs").Index().Error(),
		check(jen.Uintptr().Call(jen.Qual("C", "sizeof_"+t.CName)), jen.Id("Sizeof"+tg.name), analyzer.SizeMarker(t.CName)),
		check(jen.Qual("unsafe", "Offsetof").Call(jen.Qual("C", probe).Values().Dot(analyzer.ProbeSubject)),
			jen.Id("Alignof"+tg.name), analyzer.AlignMarker(t.CName)),
	}
	for _, rf := range tg.plan.Own() {
		d := rf.Descriptor
		if rf.IsUnion() || d.IsBitfield() || rf.InvalidBitfield {
			continue
		}
		body = append(body, check(
			jen.Qual("unsafe", "Offsetof").Call(jen.Qual("C", t.CName).Values().Dot(cgoField(d.CName))),
			jen.Lit(int(rf.ByteOffset)),
			analyzer.OffsetMarker(t.CName, d.QualifiedPath()),
		))
	}
	body = append(body, jen.Return(jen.Qual("errors", "Join").Call(jen.Id("errs").Op("..."))))

	name := "Verify" + tg.name + "ABI"
	return jen.Commentf("%s reports every size, alignment and offset of %s that differs from", name, t.CName).Line().
		Comment("the native compiler's").Line().
		Func().Id(name).Params().Error().Block(body...)
}

// cgoField is how cgo exposes a C member to Go
func cgoField(name string) string {
	if token.IsKeyword(name) {
		return "_" + name
	}
	return name
}

func (tg *typeGen) preamble() string {
	verify := tg.opts.Verify && tg.plan != nil
	if len(tg.protos) == 0 && !verify {
		return ""
	}

	var b strings.Builder
	b.WriteString("#include <stddef.h>\n#include <stdint.h>\n")
	if verify {
		for _, inc := range tg.opts.Includes {
			fmt.Fprintf(&b, "#include <%s>\n", inc)
		}
		fmt.Fprintf(&b, "\ntypedef struct { char %s; %s %s; } abi_probe_%s;\n",
			analyzer.ProbeSentinel, tg.unit.Type.CName, analyzer.ProbeSubject, tg.unit.Type.CName)
	}
	if len(tg.protos) > 0 {
		b.WriteString("\n")
		for _, p := range tg.protos {
			b.WriteString(p + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// nativeFileName splits a cname at case changes, "GtkTextIter" → "Gtk_Text_Iter"
func nativeFileName(cname string) string {
	var b strings.Builder
	r := []rune(cname)
	for i, c := range r {
		if i > 0 && unicode.IsUpper(c) && (unicode.IsLower(r[i-1]) || (i+1 < len(r) && unicode.IsLower(r[i+1]) && unicode.IsUpper(r[i-1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(c)
	}
	return b.String()
}
