package glue

import (
	"strings"

	"github.com/alexhholmes/abilayout/internal/analyzer"
	"github.com/alexhholmes/abilayout/internal/descriptor"
	"github.com/alexhholmes/abilayout/internal/target"
)

// VoidPtr is the exchange type of pointers, callbacks and values exposed
// by address
const VoidPtr = "void *"

// Go primitive → fixed width C type used across the glue boundary
var exchange = map[string]string{
	"int8":           "int8_t",
	"uint8":          "uint8_t",
	"int16":          "int16_t",
	"uint16":         "uint16_t",
	"int32":          "int32_t",
	"uint32":         "uint32_t",
	"int64":          "int64_t",
	"uint64":         "uint64_t",
	"uintptr":        "uintptr_t",
	"float32":        "float",
	"float64":        "double",
	"bool":           "_Bool",
	"unsafe.Pointer": VoidPtr,
}

// ValueType is the C type glue functions exchange a field value in. Only
// primitives cross by value.
func ValueType(t *target.Target, canonical descriptor.TypeRef, class analyzer.Class) string {
	if class != analyzer.ClassPrimitive {
		return VoidPtr
	}
	prim, ok := t.Primitive(canonical.Base())
	if !ok {
		return VoidPtr
	}
	if c, ok := exchange[prim.Go]; ok {
		return c
	}
	return VoidPtr
}

// ByAddress reports whether a getter returns the field's address
func ByAddress(class analyzer.Class) bool {
	return class == analyzer.ClassAggregate || class == analyzer.ClassUnknown
}

func decl(typ, name string) string {
	if strings.HasSuffix(typ, "*") {
		return typ + name
	}
	return typ + " " + name
}

func GetterProto(name, value string) string {
	return decl(value, name) + "(void *obj);"
}

func SetterProto(name, value string) string {
	return "void " + name + "(void *obj, " + decl(value, "value") + ");"
}

func OffsetProto(name string) string {
	return "size_t " + name + "(void);"
}
