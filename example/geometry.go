package example

// @native cname=GdkPoint namespace=Gdk
type Point struct {
	X int32 `native:"gint"`
	Y int32 `native:"gint"`
}

// @native cname=GdkRectangle namespace=Gdk
type Rectangle struct {
	X      int32 `native:"gint"`
	Y      int32 `native:"gint"`
	Width  int32 `native:"gint"`
	Height int32 `native:"gint"`
}

// @native cname=GtkAllocation type=GdkRectangle
type Allocation Rectangle
