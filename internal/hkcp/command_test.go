package hkcp

import (
	"strings"
	"testing"

	"hakit/internal/endpoint"
)

func newTestContext() (*CommandContext, *endpoint.Registry) {
	reg := endpoint.NewRegistry(0)
	return &CommandContext{Endpoints: reg, Nodes: NewNodeManager()}, reg
}

func TestSetUnknownSinkReportsError(t *testing.T) {
	c, _ := newTestContext()
	out := c.Dispatch("set nosuch=1")
	if !strings.Contains(out, ".ERROR: Unknown sink: nosuch") {
		t.Fatalf("output = %q, want an unknown-sink error", out)
	}
}

func TestSetUpdatesRegisteredSink(t *testing.T) {
	c, reg := newTestContext()
	var got string
	sink, _ := reg.RegisterSink("light", false, "switch", "", func(v string) { got = v })

	out := c.Dispatch("set light=on")
	if out != "" {
		t.Fatalf("expected no error output, got %q", out)
	}
	if got != "on" || sink.Value != "on" {
		t.Fatalf("sink not updated: got=%q value=%q", got, sink.Value)
	}
}

func TestGetDumpsAllEndpointsTerminatedByDot(t *testing.T) {
	c, reg := newTestContext()
	_, _ = reg.RegisterSink("a", false, "switch", "", nil)
	_, _ = reg.RegisterSource("b", false, "number", "", false)

	out := c.Dispatch("get")
	if !strings.HasSuffix(out, ".\n") {
		t.Fatalf("output should end with a terminal dot line, got %q", out)
	}
	if !strings.Contains(out, "sink") || !strings.Contains(out, "source") {
		t.Fatalf("expected both a sink and source line, got %q", out)
	}
}

func TestWatchTogglesAndDumpsCurrentValues(t *testing.T) {
	c, reg := newTestContext()
	src, _ := reg.RegisterSource("temp", false, "number", "", false)
	reg.UpdateSource(src, "19")

	out := c.Dispatch("watch on")
	if !c.Watch {
		t.Fatalf("expected watch flag to be set")
	}
	if !strings.Contains(out, "!temp=19") {
		t.Fatalf("expected an immediate dump of current source values, got %q", out)
	}
}

func TestWatchSyntaxError(t *testing.T) {
	c, _ := newTestContext()
	out := c.Dispatch("watch bogus")
	if !strings.Contains(out, ".ERROR: watch: Syntax error") {
		t.Fatalf("output = %q, want a watch syntax error", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	c, _ := newTestContext()
	out := c.Dispatch("frobnicate")
	if !strings.Contains(out, ".ERROR: Unknown command: frobnicate") {
		t.Fatalf("output = %q, want an unknown-command error", out)
	}
}
