package testdata

// @native cname=GdkRectangle namespace=Gdk
type Rectangle struct {
	X      int32 `native:"gint"`
	Y      int32 `native:"gint"`
	Width  int32 `native:"gint"`
	Height int32 `native:"gint"`
}

// @native cname=GtkAllocation type=GdkRectangle
type Allocation Rectangle

// @native cname=GtkWidget parent=GObject kind=object
type Widget struct {
	ParentInstance Object     `native:"GObject"`
	Alloc          Allocation `native:"GtkAllocation,cname=allocation"`
	Name           string     `native:"gchar*,readonly"`
	Window         uintptr    `native:"GdkWindow*,private"`
	Scratch        []byte     `native:"-"`
	NotNative      int
}

// @native cname=GObject kind=object
type Object struct {
	TypeInstance uintptr `native:"gpointer,hidden"`
	RefCount     uint32  `native:"guint"`
}

// No annotation - should be skipped
type IgnoredType struct {
	Field uint32 `native:"guint"`
}
