package graph

import (
	"fmt"
	"strings"
)

// Tile is a loaded configuration unit: a named set of objects wired
// together by nets.
type Tile struct {
	Name    string
	objects []*Object
	byName  map[string]*Object
	nets    []*Net
	reg     *Registry
}

// NewTile creates an empty tile bound to a class registry. A nil
// registry uses Default().
func NewTile(name string, reg *Registry) *Tile {
	if reg == nil {
		reg = Default()
	}
	return &Tile{Name: name, byName: make(map[string]*Object), reg: reg}
}

// Objects returns the tile's objects in creation order.
func (t *Tile) Objects() []*Object { return t.objects }

// Setup dispatches every object's configured properties against its
// pads: a property whose name matches a pad and whose value is
// "$<pad reference>" binds that pad into a net (hk_obj_net); a
// property whose name matches a pad but whose value has no "$" prefix
// is a plain value preset (hk_obj_preset); a property matching no pad
// at all was already consumed by the class's own New (e.g. "local",
// "widget") and is silently skipped here, matching hk_obj_setup.
// Setup must run for every object in the tile before Start is called
// on any of them, matching hk_app_start's two-phase startup.
func (t *Tile) Setup() error {
	for _, obj := range t.objects {
		var setupErr error
		obj.Props.ForEach(func(key, value string) {
			if setupErr != nil {
				return
			}
			pad := obj.FindPad(key)
			if pad == nil {
				return
			}
			if len(value) > 0 && value[0] == '$' {
				target, err := t.resolvePadRefFrom(obj, value[1:])
				if err != nil {
					setupErr = err
					return
				}
				setupErr = t.connectPads(pad, target)
			} else {
				setupErr = t.preset(obj, key, value)
			}
		})
		if setupErr != nil {
			return fmt.Errorf("setup object %q: %w", obj.Name, setupErr)
		}
	}
	return nil
}

// Start invokes every object's class Start callback, in creation
// order, matching hk_app_start's second phase.
func (t *Tile) Start() error {
	for _, obj := range t.objects {
		if obj.Class.Start != nil {
			if err := obj.Class.Start(obj); err != nil {
				return fmt.Errorf("start object %q: %w", obj.Name, err)
			}
		}
	}
	return nil
}

func (t *Tile) preset(obj *Object, name, value string) error {
	pad := obj.FindPad(name)
	if pad == nil {
		return fmt.Errorf("no such pad %q on object %q", name, obj.Name)
	}
	if pad.Dir == DirOut {
		pad.UpdateStr(value)
	} else {
		pad.Value = value
		pad.UpdateInput()
	}
	return nil
}

// resolveRef resolves an "object.pad" reference against the tile.
func (t *Tile) resolveRef(ref string) (*Pad, error) {
	i := indexByte(ref, '.')
	if i < 0 {
		return nil, fmt.Errorf("invalid pad reference %q", ref)
	}
	objName, padName := ref[:i], ref[i+1:]

	obj := t.FindObject(objName)
	if obj == nil {
		return nil, fmt.Errorf("no such object %q", objName)
	}
	pad := obj.FindPad(padName)
	if pad == nil {
		return nil, fmt.Errorf("no such pad %q on object %q", padName, objName)
	}
	return pad, nil
}

// resolvePadRefFrom resolves a property-value pad reference relative
// to obj: a bare "padname" names a pad on obj itself, "obj.pad" and
// "tile.obj.pad" are resolved the same as a [nets] line reference. A
// "tile.obj.pad" reference naming a tile other than this one is
// rejected: cross-tile linking across multiple loaded tiles in one
// process isn't supported.
func (t *Tile) resolvePadRefFrom(obj *Object, ref string) (*Pad, error) {
	switch parts := strings.Split(ref, "."); len(parts) {
	case 1:
		pad := obj.FindPad(parts[0])
		if pad == nil {
			return nil, fmt.Errorf("no such pad %q on object %q", parts[0], obj.Name)
		}
		return pad, nil
	case 2:
		return t.resolveRef(ref)
	case 3:
		if parts[0] != t.Name {
			return nil, fmt.Errorf("cross-tile pad reference %q: tile %q not loaded alongside %q", ref, parts[0], t.Name)
		}
		return t.resolveRef(parts[1] + "." + parts[2])
	default:
		return nil, fmt.Errorf("invalid pad reference %q", ref)
	}
}

// ConnectNet wires every "object.pad" reference in refs (each
// "objectname.padname") into a single net, creating it lazily and
// merging existing nets as needed.
func (t *Tile) ConnectNet(refs []string) error {
	return t.connectNet(refs)
}

// connectNet wires every "object.pad" reference in refs into a single
// net, creating it lazily and merging as needed.
func (t *Tile) connectNet(refs []string) error {
	pads := make([]*Pad, 0, len(refs))
	for _, ref := range refs {
		pad, err := t.resolveRef(ref)
		if err != nil {
			return err
		}
		pads = append(pads, pad)
	}
	return t.connectPads(pads...)
}

// connectPads wires the given pads into a single net, creating it
// lazily and merging existing nets as needed, matching hk_obj_net's
// pairwise connect as well as a [nets] line's group connect.
func (t *Tile) connectPads(pads ...*Pad) error {
	var net *Net

	for _, pad := range pads {
		if pad.Net == nil {
			if net == nil {
				net = t.createNet()
			}
			if err := t.connectPad(net, pad); err != nil {
				return err
			}
		} else if net == nil {
			net = pad.Net
		} else if net != pad.Net {
			net = t.mergeNets(net, pad.Net)
		}
	}

	return nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
