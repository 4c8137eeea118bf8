package classes

import (
	"testing"

	"hakit/internal/endpoint"
	"hakit/internal/graph"
	"hakit/internal/prop"
)

func TestSinkSourceLoopThroughNotGate(t *testing.T) {
	reg := graph.NewRegistry()
	endpoints := endpoint.NewRegistry(0)
	RegisterAll(reg, endpoints)

	tile := graph.NewTile("t", reg)

	if _, err := tile.CreateObject("trigger", reg.Find("sink"), prop.New()); err != nil {
		t.Fatalf("create sink: %v", err)
	}
	if _, err := tile.CreateObject("inverter", reg.Find("not"), prop.New()); err != nil {
		t.Fatalf("create not: %v", err)
	}
	if _, err := tile.CreateObject("result", reg.Find("source"), prop.New()); err != nil {
		t.Fatalf("create source: %v", err)
	}

	if err := tile.ConnectNet([]string{"trigger.out", "inverter.in"}); err != nil {
		t.Fatalf("connect trigger->inverter: %v", err)
	}
	if err := tile.ConnectNet([]string{"inverter.out", "result.in"}); err != nil {
		t.Fatalf("connect inverter->result: %v", err)
	}

	sink := endpoints.RetrieveSink("trigger")
	if sink == nil {
		t.Fatalf("expected a registered sink named trigger")
	}

	endpoints.UpdateSink(sink, "1")

	source := endpoints.RetrieveSource("result")
	if source == nil {
		t.Fatalf("expected a registered source named result")
	}
	if source.Value != "0" {
		t.Fatalf("result source = %q, want 0 (NOT of 1)", source.Value)
	}

	endpoints.UpdateSink(sink, "0")
	if source.Value != "1" {
		t.Fatalf("result source = %q, want 1 (NOT of 0)", source.Value)
	}
}
