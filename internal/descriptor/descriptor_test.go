package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeRef(t *testing.T) {
	tests := []struct {
		ref     TypeRef
		pointer bool
		base    string
		c       string
	}{
		{"gint", false, "gint", "gint"},
		{"GtkWidget*", true, "GtkWidget", "GtkWidget *"},
		{"const-gchar*", true, "gchar", "const gchar *"},
		{"gchar**", true, "gchar", "gchar **"},
		{" guint ", false, "guint", "guint"},
	}

	for _, tt := range tests {
		t.Run(string(tt.ref), func(t *testing.T) {
			assert.Equal(t, tt.pointer, tt.ref.IsPointer())
			assert.Equal(t, tt.base, tt.ref.Base())
			assert.Equal(t, tt.c, tt.ref.C())
		})
	}
}

func TestPath(t *testing.T) {
	p := Path{"u"}
	q := p.Append("s")

	assert.Equal(t, Path{"u"}, p, "Append must not modify receiver")
	assert.True(t, q.Equal(Path{"u", "s"}))
	assert.False(t, q.Equal(p))
	assert.Equal(t, "u.s", q.String())
	assert.Equal(t, "u_s", q.Ident())
	assert.NotEqual(t, Path{"u_s"}.Key(), q.Key())
	assert.True(t, Path(nil).IsZero())
}

func TestNewUnionPaths(t *testing.T) {
	u := NewUnion("Data", "data", 2, []Substruct{
		{Name: "V", CName: "v", Single: true, Fields: []Field{{CName: "v", Type: "gint", Order: 0}}},
		{Name: "Pair", CName: "pair", Fields: []Field{
			{CName: "x", Type: "gint", Order: 0},
			{CName: "y", Type: "gint", Order: 1},
		}},
	})

	require.Len(t, u.Substructs, 2)
	assert.True(t, u.Substructs[0].Single)
	assert.Equal(t, Path{"data"}, u.Substructs[0].Fields[0].Path)
	assert.Equal(t, Path{"data", "pair"}, u.Substructs[1].Fields[1].Path)
	assert.Equal(t, "data.pair.y", u.Substructs[1].Fields[1].QualifiedPath().String())
}

func TestNewUnionStructWithOneField(t *testing.T) {
	u := NewUnion("U", "u", 0, []Substruct{
		{CName: "raw", Single: true, Fields: []Field{{CName: "raw", Type: "gint64"}}},
		{Name: "S", CName: "s", Fields: []Field{{CName: "x", Type: "gint"}}},
	})

	assert.False(t, u.Substructs[1].Single)
	assert.Equal(t, "u.raw", u.Substructs[0].Fields[0].QualifiedPath().String())
	assert.Equal(t, "u.s.x", u.Substructs[1].Fields[0].QualifiedPath().String())
}

func TestParentMember(t *testing.T) {
	parent := Member{Field: &Field{CName: "parent_instance", Type: "GObject", Order: 1}}
	union := Member{Union: NewUnion("u", "u", 0, []Substruct{
		{CName: "i", Single: true, Fields: []Field{{CName: "i", Type: "gint"}}},
	})}
	other := Member{Field: &Field{CName: "a", Type: "gint", Order: 0}}

	tests := []struct {
		name string
		typ  Type
		want int
	}{
		{"first field", Type{Parent: "GObject", Members: []Member{parent}}, 0},
		{"after leading union", Type{Parent: "GObject", Members: []Member{union, parent}}, 1},
		{"not first field", Type{Parent: "GObject", Members: []Member{other, parent}}, -1},
		{"no parent", Type{Members: []Member{parent}}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.ParentMember())
		})
	}
}

func TestValidate(t *testing.T) {
	field := func(cname string, order uint) Member {
		return Member{Field: &Field{CName: cname, Type: "gint", Order: order}}
	}

	tests := []struct {
		name    string
		typ     Type
		wantErr bool
	}{
		{
			name: "ordered",
			typ:  Type{CName: "A", Members: []Member{field("a", 0), field("b", 1)}},
		},
		{
			name:    "order not increasing",
			typ:     Type{CName: "A", Members: []Member{field("a", 1), field("b", 1)}},
			wantErr: true,
		},
		{
			name:    "duplicate",
			typ:     Type{CName: "A", Members: []Member{field("a", 0), field("a", 1)}},
			wantErr: true,
		},
		{
			name: "pointer bitfield",
			typ: Type{CName: "A", Members: []Member{
				{Field: &Field{CName: "p", Type: "gpointer*", Bits: 1}},
			}},
			wantErr: true,
		},
		{
			name:    "missing cname",
			typ:     Type{Name: "A"},
			wantErr: true,
		},
		{
			name: "empty substructure",
			typ: Type{CName: "A", Members: []Member{
				{Union: NewUnion("u", "u", 0, []Substruct{{CName: "s"}})},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAllFields(t *testing.T) {
	typ := Type{CName: "A", Members: []Member{
		{Field: &Field{CName: "a", Order: 0}},
		{Union: NewUnion("u", "u", 1, []Substruct{
			{CName: "x", Single: true, Fields: []Field{{CName: "x"}}},
			{CName: "s", Fields: []Field{{CName: "p", Order: 0}, {CName: "q", Order: 1}}},
		})},
	}}

	assert.Len(t, typ.Fields(), 1)
	assert.Len(t, typ.AllFields(), 4)
}
