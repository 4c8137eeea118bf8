package graph

import "hakit/internal/prop"

// Object is an instance of a Class, owning a set of pads and the
// property map it was configured with.
type Object struct {
	Name  string
	Class *Class
	Props prop.Map
	Pads  []*Pad

	tile *Tile
}

// CreateObject instantiates class under name within the tile, with its
// property map already populated from the tile definition (each
// "name=value" token split by the loader, matching hk_obj_create), and,
// if the class declares one, invokes its New callback. Duplicate names
// within a tile are rejected.
func (t *Tile) CreateObject(name string, class *Class, props prop.Map) (*Object, error) {
	if t.FindObject(name) != nil {
		return nil, duplicateObjectError(name)
	}

	obj := &Object{Name: name, Class: class, Props: props, tile: t}
	t.objects = append(t.objects, obj)
	t.byName[name] = obj

	if class.New != nil {
		if err := class.New(obj); err != nil {
			return nil, err
		}
	}

	return obj, nil
}

// FindObject looks an object up by name within the tile.
func (t *Tile) FindObject(name string) *Object {
	return t.byName[name]
}

type dupErr string

func (e dupErr) Error() string { return "duplicate object name: " + string(e) }

func duplicateObjectError(name string) error { return dupErr(name) }
