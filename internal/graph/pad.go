package graph

// Dir is a pad's declared direction.
type Dir int

const (
	// DirIn pads are written by their net and read by the owning object.
	DirIn Dir = iota
	// DirOut pads are written by the owning object and propagated to their net.
	DirOut
	// DirIO pads behave as both; a write from either side propagates to the other.
	DirIO
)

func (d Dir) String() string {
	switch d {
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	case DirIO:
		return "io"
	default:
		return "?"
	}
}

// Pad is a typed input/output/io port on an Object.
type Pad struct {
	Name   string
	Dir    Dir
	Object *Object
	Net    *Net
	Value  string

	lock bool // reentrancy guard, not a mutex: set only while driving fan-out
}

// CreatePad adds a new pad to obj and returns it. Names must be unique
// within an object; a duplicate is not rejected but appended as a
// second pad, and FindPad keeps returning the first one, matching
// hk_pad_create's append-only table.
func CreatePad(obj *Object, name string, dir Dir) *Pad {
	p := &Pad{Name: name, Dir: dir, Object: obj}
	obj.Pads = append(obj.Pads, p)
	return p
}

// FindPad looks up a pad by name on an object.
func (o *Object) FindPad(name string) *Pad {
	for _, p := range o.Pads {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// UpdateStr sets a pad's value and propagates it across its net to
// every other non-OUT pad, then invokes each receiving object's class
// Input callback. Updates re-entering a pad already mid-update are
// dropped, mirroring hk_pad_update_str's lock field.
func (p *Pad) UpdateStr(value string) {
	if p.lock {
		return
	}

	p.Value = value
	p.lock = true
	defer func() { p.lock = false }()

	if p.Net == nil {
		return
	}

	for _, other := range p.Net.pads {
		if other == p || other.Dir == DirOut {
			continue
		}
		other.Value = value
		if other.Object != nil && other.Object.Class != nil && other.Object.Class.Input != nil {
			other.Object.Class.Input(other.Object, other)
		}
	}
}

// UpdateInput invokes the owning object's Input callback for this pad,
// guarding against reentrant invocation the same way UpdateStr does.
func (p *Pad) UpdateInput() {
	if p.lock {
		return
	}
	p.lock = true
	defer func() { p.lock = false }()

	if p.Object != nil && p.Object.Class != nil && p.Object.Class.Input != nil {
		p.Object.Class.Input(p.Object, p)
	}
}
