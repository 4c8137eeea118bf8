// Package graph implements the HAKit dataflow graph: tiles, classes,
// objects, pads and nets, as described in core/mod.c and core/mod_load.c
// of the original HAKit engine.
package graph

import "fmt"

// Class is a behavior descriptor registered under a unique name. An
// Object instantiates a Class; New and Start are optional, mirroring
// the original's nullable class->new/class->start function pointers.
type Class struct {
	Name string

	// New is invoked once when an object of this class is created,
	// after its property map has been populated from the tile
	// definition but before any net wiring. Classes read configuration
	// out of obj.Props (hk_prop_get), not positional arguments.
	New func(obj *Object) error

	// Start is invoked once for every object, in creation order,
	// after the whole tile has finished its setup phase.
	Start func(obj *Object) error

	// Input is invoked whenever an IN or IO pad belonging to an
	// object of this class receives a new value via its net.
	Input func(obj *Object, pad *Pad)
}

// Registry holds classes registered by name. The zero value is ready
// to use; the package-level Default registry is the one NewTile falls
// back to when given nil.
type Registry struct {
	classes map[string]*Class
}

// NewRegistry returns an empty class registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide class registry used by LoadTile
// when no explicit registry is supplied.
func Default() *Registry { return defaultRegistry }

// Register adds a class to the registry. Re-registering the same name
// overwrites the previous entry, matching the original loader which
// allows a class to be reloaded.
func (r *Registry) Register(c *Class) error {
	if c.Name == "" {
		return fmt.Errorf("graph: class has no name")
	}
	if r.classes == nil {
		r.classes = make(map[string]*Class)
	}
	r.classes[c.Name] = c
	return nil
}

// Find looks a class up by name.
func (r *Registry) Find(name string) *Class {
	return r.classes[name]
}
