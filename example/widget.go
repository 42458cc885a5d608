package example

import "unsafe"

// @native cname=GObject namespace=G kind=object
type Object struct {
	TypeInstance unsafe.Pointer `native:"gpointer,cname=g_type_instance"`
	RefCount     uint32         `native:"guint,readonly"`
	Qdata        unsafe.Pointer `native:"gpointer,private"`
}

// @native cname=GtkCallback namespace=Gtk kind=callback
type Callback func(widget unsafe.Pointer, data unsafe.Pointer)

// Widget fields after the parent instance are laid out from the end of
// GObject. Visible and Sensitive share one packing word.
//
// @native cname=GtkWidget namespace=Gtk kind=object parent=GObject
type Widget struct {
	ParentInstance Object         `native:"GObject"`
	Allocation     Rectangle      `native:"GtkAllocation"`
	Name           *byte          `native:"gchar*"`
	Visible        uint32         `native:"guint,bits=1"`
	Sensitive      uint32         `native:"guint,bits=1"`
	Destroy        Callback       `native:"GtkCallback"`
	Priv           unsafe.Pointer `native:"gpointer,hidden"`
}
