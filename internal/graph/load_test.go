package graph

import (
	"strings"
	"testing"
)

func propClass() *Class {
	c := &Class{Name: "prop_test"}
	c.New = func(obj *Object) error {
		CreatePad(obj, "in", DirIn)
		CreatePad(obj, "out", DirOut)
		if obj.Props.Has("greeting") {
			obj.FindPad("out").Value = obj.Props.Get("greeting")
		}
		return nil
	}
	return c
}

func TestLoadTileSplitsPropertiesOnEquals(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(propClass()); err != nil {
		t.Fatalf("register: %v", err)
	}

	tile := NewTile("t", reg)
	src := "[objects]\na: prop_test greeting=hi local\n"
	if err := tile.loadReader(strings.NewReader(src)); err != nil {
		t.Fatalf("load: %v", err)
	}

	a := tile.FindObject("a")
	if a == nil {
		t.Fatalf("object 'a' not created")
	}
	if got := a.Props.Get("greeting"); got != "hi" {
		t.Fatalf("greeting = %q, want hi", got)
	}
	if !a.Props.Has("local") || a.Props.Get("local") != "" {
		t.Fatalf("expected bare token 'local' stored with an empty value")
	}
	if a.FindPad("out").Value != "hi" {
		t.Fatalf("class New did not see greeting via obj.Props")
	}
}

func TestTileSetupWiresDollarPrefixedPadReferences(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(propClass()); err != nil {
		t.Fatalf("register: %v", err)
	}

	tile := NewTile("t", reg)
	src := "[objects]\na: prop_test\nb: prop_test in=$a.out\n"
	if err := tile.loadReader(strings.NewReader(src)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tile.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}

	aOut := tile.FindObject("a").FindPad("out")
	bIn := tile.FindObject("b").FindPad("in")
	if aOut.Net == nil || aOut.Net != bIn.Net {
		t.Fatalf("expected a.out and b.in to share a net after $ wiring")
	}
}

func TestTileSetupPresetsPlainPadValue(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(propClass()); err != nil {
		t.Fatalf("register: %v", err)
	}

	tile := NewTile("t", reg)
	src := "[objects]\na: prop_test out=42\n"
	if err := tile.loadReader(strings.NewReader(src)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tile.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if got := tile.FindObject("a").FindPad("out").Value; got != "42" {
		t.Fatalf("out = %q, want 42", got)
	}
}

func TestTileSetupSkipsPropertiesNotMatchingAnyPad(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(propClass()); err != nil {
		t.Fatalf("register: %v", err)
	}

	tile := NewTile("t", reg)
	src := "[objects]\na: prop_test widget=led-red\n"
	if err := tile.loadReader(strings.NewReader(src)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tile.Setup(); err != nil {
		t.Fatalf("setup should not error on a property with no matching pad: %v", err)
	}
}
