package shapes

// Point is a 2D coordinate
//
// @native cname=ShapesPoint
type Point struct {
	X int32 `native:"gint"`
	Y int32 `native:"gint"`
}

// @native cname=ShapesLine
type Line struct {
	Start Point  `native:"ShapesPoint"`
	End   Point  `native:"ShapesPoint"`
	Width uint16 `native:"guint16"`
}
