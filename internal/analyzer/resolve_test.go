package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhholmes/abilayout/internal/descriptor"
	"github.com/alexhholmes/abilayout/internal/target"
)

func TestResolvePadding(t *testing.T) {
	// a: 4 @ 4, b: 1 @ 1, c: 4 @ 4
	r := registryWith(newType("Padded",
		field("a", "gint", 0),
		field("b", "gchar", 1),
		field("c", "gint", 2),
	))

	res := r.Get("Padded")
	require.Equal(t, Valid, res.Status)

	plan := res.Plan
	assert.Equal(t, uint(0), plan.Field("a").ByteOffset)
	assert.Equal(t, uint(4), plan.Field("b").ByteOffset)
	assert.Equal(t, uint(8), plan.Field("c").ByteOffset)
	assert.Equal(t, uint(12), plan.TotalSize)
	assert.Equal(t, uint(4), plan.TotalAlignment)
	assert.Empty(t, Verify(plan))
}

func TestResolveInheritedPrefix(t *testing.T) {
	r := registryWith(
		newType("Base", field("x", "gint", 0), field("y", "gint", 1)),
		newChild("Derived", "Base",
			field("parent_instance", "Base", 0),
			field("d", "gint64", 1),
		),
	)

	base := r.Get("Base").Plan
	require.Equal(t, uint(8), base.TotalSize)
	require.Equal(t, uint(4), base.TotalAlignment)

	res := r.Get("Derived")
	require.Equal(t, Valid, res.Status)
	plan := res.Plan

	require.Len(t, plan.Own(), 1, "parent field is represented by the prefix")
	assert.Equal(t, uint(8), plan.Field("d").ByteOffset)
	assert.Equal(t, uint(16), plan.TotalSize)
	assert.Equal(t, uint(8), plan.TotalAlignment)

	// Inherited entries are the parent's own, shared
	assert.Same(t, base, plan.Parent)
	for i, f := range base.Fields() {
		assert.Same(t, f, plan.Fields()[i])
	}
	assert.Empty(t, Verify(plan))
}

func TestResolveParentPointerField(t *testing.T) {
	// Some inputs declare the parent instance as a pointer
	r := registryWith(
		newType("Base", field("x", "gint", 0)),
		newChild("Derived", "Base", field("parent", "Base*", 0), field("y", "gint", 1)),
	)

	plan := r.Get("Derived").Plan
	require.NotNil(t, plan)
	assert.Nil(t, plan.Field("parent"))
	assert.Equal(t, uint(4), plan.Field("y").ByteOffset)
}

func TestResolveParentFieldOnlyFirst(t *testing.T) {
	r := registryWith(
		newType("Base", field("x", "gint", 0)),
		newChild("Derived", "Base",
			field("y", "gint", 0),
			field("other", "Base", 1),
		),
	)

	plan := r.Get("Derived").Plan
	require.NotNil(t, plan)
	assert.NotNil(t, plan.Field("other"), "only the first declared field may be the parent")
	assert.Equal(t, uint(8), plan.Field("other").ByteOffset)
}

func TestResolveParentFieldAfterUnion(t *testing.T) {
	u := descriptor.NewUnion("U", "u", 0, []descriptor.Substruct{
		{CName: "i", Single: true, Fields: []descriptor.Field{{CName: "i", Type: "gint"}}},
	})
	r := registryWith(
		newType("Base", field("x", "gint", 0)),
		newChild("Derived", "Base",
			descriptor.Member{Union: u},
			field("parent_instance", "Base", 1),
			field("y", "gint", 2),
		),
	)

	plan := r.Get("Derived").Plan
	require.True(t, plan.Valid)
	assert.Nil(t, plan.Field("parent_instance"), "unions do not count as the first field")
	assert.Equal(t, uint(4), plan.Field("u").ByteOffset)
	assert.Equal(t, uint(8), plan.Field("y").ByteOffset)
	assert.Equal(t, uint(12), plan.TotalSize)
}

func TestResolveBitfields(t *testing.T) {
	r := registryWith(newType("Flags",
		bitfield("a", 3, 0),
		bitfield("b", 4, 1),
		bitfield("c", 30, 2),
		field("tail", "gchar", 3),
	))

	plan := r.Get("Flags").Plan
	require.True(t, plan.Valid)

	a, b, c := plan.Field("a"), plan.Field("b"), plan.Field("c")
	assert.Equal(t, a.ByteOffset, b.ByteOffset, "a and b share a word")
	assert.Equal(t, uint(0), a.ByteOffset)
	assert.Equal(t, uint(4), c.ByteOffset, "c opens the next word")

	assert.Equal(t, uint(0), a.BitOffset)
	assert.Equal(t, uint(3), b.BitOffset)
	assert.Equal(t, uint(0), c.BitOffset)

	assert.Equal(t, uint(8), plan.Field("tail").ByteOffset)
	assert.Equal(t, uint(12), plan.TotalSize)
	assert.Empty(t, Verify(plan))
}

func TestResolveBitfieldsMSB(t *testing.T) {
	tgt := *target.Default()
	tgt.BitOrder = target.MSBFirst

	r := NewRegistry(&tgt)
	require.NoError(t, r.Register(newType("Flags", bitfield("a", 3, 0), bitfield("b", 4, 1))))

	plan := r.Get("Flags").Plan
	assert.Equal(t, uint(29), plan.Field("a").BitOffset)
	assert.Equal(t, uint(25), plan.Field("b").BitOffset)
}

func TestResolveBitfieldWordSize(t *testing.T) {
	tgt := *target.Default()
	tgt.WordSize = 1

	r := NewRegistry(&tgt)
	require.NoError(t, r.Register(newType("Bytes",
		bitfield("a", 5, 0),
		bitfield("b", 5, 1),
	)))

	plan := r.Get("Bytes").Plan
	assert.Equal(t, uint(0), plan.Field("a").ByteOffset)
	assert.Equal(t, uint(1), plan.Field("b").ByteOffset)
	assert.Equal(t, uint(2), plan.TotalSize)
}

func TestResolveInvalidBitfield(t *testing.T) {
	r := registryWith(newType("Wide",
		bitfield("huge", 40, 0),
		field("after", "gint", 1),
	))

	res := r.Get("Wide")
	require.Equal(t, Valid, res.Status, "an invalid bitfield does not invalidate the plan")

	huge := res.Plan.Field("huge")
	assert.True(t, huge.InvalidBitfield)
	assert.Equal(t, uint(8), huge.SizeBytes)
	assert.Equal(t, uint(8), res.Plan.Field("after").ByteOffset)
	require.Len(t, res.Plan.Warnings, 1)
	assert.Contains(t, res.Plan.Warnings[0], ErrInvalidBitfield.Error())
}

func TestResolveUnresolvableField(t *testing.T) {
	r := registryWith(newType("Broken",
		field("ok", "gint", 0),
		field("bad", "GdkMystery", 1),
		field("later", "gint", 2),
	))

	res := r.Get("Broken")
	assert.Equal(t, Invalid, res.Status)
	require.NotNil(t, res.Plan)
	assert.False(t, res.Plan.Valid)
	assert.True(t, errors.Is(res.Err, ErrUnresolvedType))

	var le *LayoutError
	require.ErrorAs(t, res.Err, &le)
	assert.Equal(t, "Broken", le.Type)
	assert.Equal(t, descriptor.Path{"bad"}, le.Field)
	assert.Empty(t, Verify(res.Plan))
}

func TestResolveArrays(t *testing.T) {
	m := field("name", "gchar", 1)
	m.Field.ArrayLen = 5

	r := registryWith(newType("Named", field("id", "gint", 0), m, field("next", "gint", 2)))
	plan := r.Get("Named").Plan

	assert.Equal(t, uint(4), plan.Field("name").ByteOffset)
	assert.Equal(t, uint(5), plan.Field("name").SizeBytes)
	assert.Equal(t, uint(12), plan.Field("next").ByteOffset)
}

func TestResolvePointersAndCallbacks(t *testing.T) {
	cb := field("notify", "GDestroyNotify", 2)
	cb.Field.Callback = true

	r := registryWith(newType("Holder",
		field("flag", "gchar", 0),
		field("data", "gpointer", 1),
		cb,
		field("name", "const-gchar*", 3),
	))

	plan := r.Get("Holder").Plan
	require.True(t, plan.Valid)
	assert.Equal(t, uint(8), plan.Field("data").ByteOffset)
	assert.Equal(t, ClassPointer, plan.Field("data").Class)
	assert.Equal(t, uint(16), plan.Field("notify").ByteOffset)
	assert.Equal(t, ClassCallback, plan.Field("notify").Class)
	assert.Equal(t, uint(24), plan.Field("name").ByteOffset)
	assert.Equal(t, uint(32), plan.TotalSize)
	assert.Nil(t, plan.Field("data").Probe, "pointers are never probed")
}

func TestResolve32Bit(t *testing.T) {
	r := NewRegistry(mustTarget("i686-linux-gnu"))
	require.NoError(t, r.Register(newType("Mixed",
		field("c", "gchar", 0),
		field("d", "gdouble", 1),
		field("p", "gpointer", 2),
	)))

	plan := r.Get("Mixed").Plan
	assert.Equal(t, uint(4), plan.Field("d").ByteOffset)
	assert.Equal(t, uint(12), plan.Field("p").ByteOffset)
	assert.Equal(t, uint(16), plan.TotalSize)
	assert.Equal(t, uint(4), plan.TotalAlignment)
}

func TestResolveAggregateField(t *testing.T) {
	rect := newType("GdkRectangle",
		field("x", "gint", 0), field("y", "gint", 1),
		field("width", "gint", 2), field("height", "gint", 3),
	)
	r := registryWith(rect, newType("Alloc",
		field("flag", "gchar", 0),
		field("area", "GdkRectangle", 1),
	))

	plan := r.Get("Alloc").Plan
	require.True(t, plan.Valid)

	area := plan.Field("area")
	assert.Equal(t, ClassAggregate, area.Class)
	assert.Equal(t, uint(4), area.ByteOffset)
	assert.Equal(t, uint(16), area.SizeBytes)
	require.NotNil(t, area.Probe)
	assert.Equal(t, "abi_probe_GdkRectangle", area.Probe.Name)
	assert.Equal(t, "alignof(GdkRectangle)", area.Probe.AlignMarker)

	constructs := r.Prober().Constructs()
	require.Len(t, constructs, 1)
	assert.Same(t, area.Probe, constructs[0])
}

func TestResolveReadBackWins(t *testing.T) {
	rb := table{"alignof(GdkRectangle)": 8, "sizeof(GdkRectangle)": 24}

	r := NewRegistry(target.Default(), WithReadBack(rb))
	require.NoError(t, r.Register(newType("GdkRectangle", field("x", "gint", 0))))
	require.NoError(t, r.Register(newType("Alloc", field("flag", "gchar", 0), field("area", "GdkRectangle", 1))))

	area := r.Get("Alloc").Plan.Field("area")
	assert.Equal(t, uint(8), area.ByteOffset)
	assert.Equal(t, uint(24), area.SizeBytes)
}

func TestResolveOpaque(t *testing.T) {
	sized := &descriptor.Type{Name: "Mutex", CName: "GMutex", Kind: descriptor.Opaque, Size: 8, Align: 8}
	unsized := &descriptor.Type{Name: "Hidden", CName: "GHidden", Kind: descriptor.Opaque}

	r := registryWith(sized, unsized,
		newType("Locked", field("flag", "gchar", 0), field("lock", "GMutex", 1)),
		newType("Embeds", field("h", "GHidden", 0)),
		newType("Points", field("h", "GHidden*", 0)),
	)

	assert.Equal(t, uint(8), r.Get("Locked").Plan.Field("lock").ByteOffset)
	assert.Equal(t, Invalid, r.Get("GHidden").Status)
	assert.Equal(t, Invalid, r.Get("Embeds").Status, "opaque by value needs a declared size")
	assert.Equal(t, Valid, r.Get("Points").Status)
}

func TestResolveUnion(t *testing.T) {
	pair := []descriptor.Field{
		{CName: "x", Type: "gint", Order: 0},
		{CName: "y", Type: "gint", Order: 1},
		{CName: "z", Type: "gint", Order: 2},
	}
	u := descriptor.NewUnion("Value", "value", 0, []descriptor.Substruct{
		{CName: "v", Single: true, Fields: []descriptor.Field{{CName: "v", Type: "gint"}}},
		{CName: "triple", Fields: pair},
	})

	r := registryWith()
	up := r.Resolver().ResolveUnion(u)

	require.True(t, up.Valid)
	assert.Equal(t, uint(12), up.TotalSize)
	assert.Equal(t, uint(4), up.TotalAlignment)
	for _, s := range up.Substructs {
		assert.Equal(t, uint(0), s.Own()[0].ByteOffset, "substructure %s starts at 0", s.Name)
	}
}

func TestResolveUnionRoundsToAlignment(t *testing.T) {
	chars := descriptor.Field{CName: "c", Type: "gchar", ArrayLen: 5}
	u := descriptor.NewUnion("U", "u", 0, []descriptor.Substruct{
		{CName: "c", Single: true, Fields: []descriptor.Field{chars}},
		{CName: "i", Single: true, Fields: []descriptor.Field{{CName: "i", Type: "gint"}}},
	})

	up := registryWith().Resolver().ResolveUnion(u)
	assert.Equal(t, uint(8), up.TotalSize)
}

func TestResolveEmbeddedUnion(t *testing.T) {
	u := descriptor.NewUnion("Data", "data", 1, []descriptor.Substruct{
		{CName: "v", Single: true, Fields: []descriptor.Field{{CName: "v", Type: "gint"}}},
		{CName: "pair", Fields: []descriptor.Field{
			{CName: "x", Type: "gint64", Order: 0},
			{CName: "y", Type: "gchar", Order: 1},
		}},
	})
	r := registryWith(newType("Tagged",
		field("tag", "gchar", 0),
		descriptor.Member{Union: u},
		field("after", "gchar", 2),
	))

	plan := r.Get("Tagged").Plan
	require.True(t, plan.Valid)

	data := plan.Field("data")
	require.True(t, data.IsUnion())
	assert.Equal(t, uint(8), data.ByteOffset)
	assert.Equal(t, uint(16), data.SizeBytes)
	assert.Equal(t, uint(24), plan.Field("after").ByteOffset)
	assert.Equal(t, uint(32), plan.TotalSize)

	v, ok := plan.Lookup(descriptor.Path{"data", "v"})
	require.True(t, ok, "single field substructure is a bare alias")
	assert.Equal(t, uint(8), v.ByteOffset)

	y, ok := plan.Lookup(descriptor.Path{"data", "pair", "y"})
	require.True(t, ok)
	assert.Equal(t, uint(16), y.ByteOffset)

	_, ok = plan.Lookup(descriptor.Path{"data", "y"})
	assert.False(t, ok, "multi field substructures are qualified")

	flat := plan.Flatten()
	require.Len(t, flat, 5)
	assert.Equal(t, descriptor.Path{"data", "pair"}, flat[3].Descriptor.Path)
	assert.Equal(t, uint(16), flat[3].ByteOffset)
	assert.Empty(t, Verify(plan))
}

func TestResolveInvalidUnionInvalidatesOwner(t *testing.T) {
	u := descriptor.NewUnion("U", "u", 1, []descriptor.Substruct{
		{CName: "ok", Single: true, Fields: []descriptor.Field{{CName: "ok", Type: "gint"}}},
		{CName: "bad", Single: true, Fields: []descriptor.Field{{CName: "bad", Type: "NoSuchType"}}},
	})
	r := registryWith(newType("Owner", field("a", "gint", 0), descriptor.Member{Union: u}))

	res := r.Get("Owner")
	assert.Equal(t, Invalid, res.Status)

	assert.ErrorIs(t, res.Err, ErrUnresolvedType)

	var le *LayoutError
	require.ErrorAs(t, res.Err, &le)
	assert.Equal(t, "Owner", le.Type)
	assert.Equal(t, descriptor.Path{"u"}, le.Field)
	assert.Contains(t, res.Err.Error(), "u.bad")
}

func TestResolveCallbackType(t *testing.T) {
	cb := &descriptor.Type{Name: "Func", CName: "GFunc", Kind: descriptor.Callback}
	r := registryWith(cb, newType("Closure", field("c", "gchar", 0), field("fn", "GFunc", 1)))

	fn := r.Get("Closure").Plan.Field("fn")
	assert.Equal(t, ClassCallback, fn.Class)
	assert.Equal(t, uint(8), fn.ByteOffset)
}
