package graph

import (
	"testing"

	"hakit/internal/prop"
)

func echoClass() *Class {
	c := &Class{Name: "echo_test"}
	c.Input = func(obj *Object, pad *Pad) {
		out := obj.FindPad("out")
		if out != nil && pad.Name == "in" {
			out.UpdateStr(pad.Value)
		}
	}
	return c
}

func newWiredTile(t *testing.T) (*Tile, *Object, *Object) {
	reg := NewRegistry()
	class := echoClass()
	if err := reg.Register(class); err != nil {
		t.Fatalf("register: %v", err)
	}

	tile := NewTile("test", reg)

	a, err := tile.CreateObject("a", class, prop.New())
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	CreatePad(a, "in", DirIn)
	CreatePad(a, "out", DirOut)

	b, err := tile.CreateObject("b", class, prop.New())
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	CreatePad(b, "in", DirIn)
	CreatePad(b, "out", DirOut)

	return tile, a, b
}

func TestUpdatePropagatesAcrossNet(t *testing.T) {
	tile, a, b := newWiredTile(t)

	if err := tile.connectNet([]string{"a.out", "b.in"}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	a.FindPad("out").UpdateStr("42")

	if got := b.FindPad("in").Value; got != "42" {
		t.Fatalf("b.in = %q, want 42", got)
	}
}

func TestNetMergeKeepsFirstNet(t *testing.T) {
	tile, a, _ := newWiredTile(t)
	c, err := tile.CreateObject("c", echoClass(), prop.New())
	if err != nil {
		t.Fatalf("create c: %v", err)
	}
	CreatePad(c, "in", DirIn)

	if err := tile.connectNet([]string{"a.out", "b.in"}); err != nil {
		t.Fatalf("connect 1: %v", err)
	}
	firstNet := a.FindPad("out").Net

	// A second wiring touching b.in (already on firstNet) and c.in
	// must merge into firstNet, not create a second net.
	if err := tile.connectNet([]string{"b.in", "c.in"}); err != nil {
		t.Fatalf("connect 2: %v", err)
	}

	if c.FindPad("in").Net != firstNet {
		t.Fatalf("expected c.in to join the first net")
	}
	if firstNet.ID() == 0 {
		t.Fatalf("surviving net should keep a non-zero id")
	}
}

func TestNetSlotReuseAfterMerge(t *testing.T) {
	tile, _, _ := newWiredTile(t)
	c, _ := tile.CreateObject("c", echoClass(), prop.New())
	CreatePad(c, "in", DirIn)
	d, _ := tile.CreateObject("d", echoClass(), prop.New())
	CreatePad(d, "in", DirIn)

	_ = tile.connectNet([]string{"a.out", "b.in"})
	_ = tile.connectNet([]string{"c.in"})
	freedID := c.FindPad("in").Net.ID()

	_ = tile.connectNet([]string{"b.in", "c.in"}) // merges c's net into a/b's net, freeing c's old slot

	d.FindPad("in").Net = nil
	newNet := tile.createNet()
	if newNet.ID() != freedID {
		t.Fatalf("expected freed slot id %d to be reused, got %d", freedID, newNet.ID())
	}
}

func TestPadUpdateLoopPrevention(t *testing.T) {
	// a.out drives b.in, whose Input callback tries to write straight
	// back onto a.out. That reentrant call must be dropped because
	// a.out is still locked mid-fan-out, or this test would recurse
	// forever instead of completing.
	reg := NewRegistry()
	var aOut *Pad
	class := &Class{Name: "bounce"}
	_ = reg.Register(class)
	class.Input = func(obj *Object, pad *Pad) {
		if pad.Name == "in" {
			aOut.UpdateStr("bounced:" + pad.Value)
		}
	}

	tile := NewTile("loop", reg)
	a, _ := tile.CreateObject("a", class, prop.New())
	aOut = CreatePad(a, "out", DirOut)
	b, _ := tile.CreateObject("b", class, prop.New())
	bIn := CreatePad(b, "in", DirIn)

	_ = tile.connectNet([]string{"a.out", "b.in"})

	aOut.UpdateStr("x")

	if bIn.Value != "x" {
		t.Fatalf("b.in = %q, want x", bIn.Value)
	}
	if aOut.Value != "x" {
		t.Fatalf("a.out = %q, want x (reentrant bounce should have been dropped)", aOut.Value)
	}
}
