package testdata

// @native cname=GtkCallback kind=callback
type Callback func(widget, data uintptr)

// @native cname=GtkStateType type=gint
type StateType int32

// @native cname=GtkValue
type Value struct {
	GType uint64 `native:"GType,cname=g_type"`
	Data  struct {
		Int    int32   `native:"gint,cname=v_int"`
		Double float64 `native:"gdouble,cname=v_double"`
		Pair   struct {
			A int16 `native:"gint16"`
			B int16 `native:"gint16"`
		} `native:"struct,cname=pair"`
	} `native:"union,cname=data"`
	Flags struct {
		Visible, Sensitive uint32 `native:"guint,bits=1"`
		Mode               uint32 `native:"guint,bits=3,writeonly"`
	} `native:"-"`
	State  StateType `native:"GtkStateType"`
	Notify uintptr   `native:"GtkCallback,callback"`
	Label  [16]byte  `native:"gchar[16]"`
	Bits   uint32    `native:"guint,bits=2,writeonly"`
}

// @native cname=GdkAtomPrivate kind=opaque size=16 align=8
type AtomPrivate struct{}
