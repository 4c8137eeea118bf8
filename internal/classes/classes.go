// Package classes provides a handful of pure dataflow-logic classes
// ("sink", "source", "not", "and") used to exercise the graph and
// endpoint registry end to end. These are graph plumbing fixtures
// ported from classes/sink/main.c, classes/source/main.c and
// classes/logic/main.c, not leaf device drivers.
package classes

import (
	"strconv"

	"hakit/internal/endpoint"
	"hakit/internal/graph"
)

// RegisterAll registers every built-in class into reg, wiring sink/
// source classes to endpoints.
func RegisterAll(reg *graph.Registry, endpoints *endpoint.Registry) {
	reg.Register(sinkClass(endpoints))
	reg.Register(sourceClass(endpoints))
	reg.Register(notClass())
	reg.Register(andClass())
}

// sinkClass exposes an "out" pad as a network-addressable Sink: a
// remote "set" command lands here and is pushed onto the object's
// "out" pad, fanning out across the net to whatever is wired downstream.
func sinkClass(endpoints *endpoint.Registry) *graph.Class {
	c := &graph.Class{Name: "sink"}
	c.New = func(obj *graph.Object) error {
		pad := graph.CreatePad(obj, "out", graph.DirOut)
		local := obj.Props.Has("local")
		widget, chart := obj.Props.Get("widget"), obj.Props.Get("chart")
		_, err := endpoints.RegisterSink(obj.Name, local, widget, chart, func(value string) {
			pad.UpdateStr(value)
		})
		return err
	}
	return c
}

// sourceClass exposes an "in" pad as a network-addressable Source:
// values arriving on "in" from the rest of the graph are published as
// the object's source value.
func sourceClass(endpoints *endpoint.Registry) *graph.Class {
	c := &graph.Class{Name: "source"}
	sources := make(map[*graph.Object]*endpoint.Source)

	c.New = func(obj *graph.Object) error {
		graph.CreatePad(obj, "in", graph.DirIn)
		local := obj.Props.Has("local")
		event := obj.Props.Has("event")
		widget, chart := obj.Props.Get("widget"), obj.Props.Get("chart")
		src, err := endpoints.RegisterSource(obj.Name, local, widget, chart, event)
		if err != nil {
			return err
		}
		sources[obj] = src
		return nil
	}
	c.Input = func(obj *graph.Object, pad *graph.Pad) {
		if pad.Name != "in" {
			return
		}
		if src, ok := sources[obj]; ok {
			endpoints.UpdateSource(src, pad.Value)
		}
	}
	return c
}

// notClass inverts a boolean-ish "in" pad onto "out".
func notClass() *graph.Class {
	c := &graph.Class{Name: "not"}
	c.New = func(obj *graph.Object) error {
		graph.CreatePad(obj, "in", graph.DirIn)
		graph.CreatePad(obj, "out", graph.DirOut)
		return nil
	}
	c.Input = func(obj *graph.Object, pad *graph.Pad) {
		if pad.Name != "in" {
			return
		}
		out := obj.FindPad("out")
		out.UpdateStr(boolStr(!truthy(pad.Value)))
	}
	return c
}

// andClass ANDs two boolean-ish inputs onto "out".
func andClass() *graph.Class {
	c := &graph.Class{Name: "and"}
	c.New = func(obj *graph.Object) error {
		graph.CreatePad(obj, "in1", graph.DirIn)
		graph.CreatePad(obj, "in2", graph.DirIn)
		graph.CreatePad(obj, "out", graph.DirOut)
		return nil
	}
	c.Input = func(obj *graph.Object, pad *graph.Pad) {
		if pad.Name != "in1" && pad.Name != "in2" {
			return
		}
		in1 := obj.FindPad("in1")
		in2 := obj.FindPad("in2")
		out := obj.FindPad("out")
		out.UpdateStr(boolStr(truthy(in1.Value) && truthy(in2.Value)))
	}
	return c
}

func truthy(s string) bool {
	if s == "" {
		return false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v != 0
	}
	return s != "0" && s != "false"
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
