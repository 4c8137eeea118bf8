package main

import "testing"

func TestSplitFieldsLeavesRemainderInLastField(t *testing.T) {
	got := splitFields("source widget chart porch.light on and bright", 5)
	want := []string{"source", "widget", "chart", "porch.light", "on and bright"}
	if len(got) != len(want) {
		t.Fatalf("splitFields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitFields[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUnquoteStripsSurroundingQuotes(t *testing.T) {
	if got := unquote(`"on"`); got != "on" {
		t.Fatalf("unquote = %q, want on", got)
	}
	if got := unquote("on"); got != "on" {
		t.Fatalf("unquote = %q, want on", got)
	}
}
