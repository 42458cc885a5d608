package example

// Value holds one of several representations at the same address
//
// @native cname=GValue namespace=G
type Value struct {
	GType uint64 `native:"gsize,cname=g_type"`
	Data  struct {
		VInt    int32   `native:"gint"`
		VDouble float64 `native:"gdouble"`
		Pair    struct {
			First  uint32 `native:"guint"`
			Second uint32 `native:"guint"`
		} `native:"struct"`
	} `native:"union"`
}
