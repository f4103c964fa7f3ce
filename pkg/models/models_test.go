package models

import (
	"sort"
	"testing"
)

func TestUnitKeyString(t *testing.T) {
	key := UnitKey{ExecutionID: "exec1", ImageID: "img-42"}
	if got := key.String(); got != "exec1:img-42" {
		t.Errorf("Expected exec1:img-42, got %s", got)
	}
}

func TestParseUnitKey(t *testing.T) {
	key, err := ParseUnitKey("exec1:img-42")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if key.ExecutionID != "exec1" || key.ImageID != "img-42" {
		t.Errorf("Unexpected key: %+v", key)
	}

	for _, bad := range []string{"", "noseparator", ":img", "exec:"} {
		if _, err := ParseUnitKey(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestParseUnitKeyRoundTrip(t *testing.T) {
	orig := UnitKey{ExecutionID: "nuclear-seg.v2", ImageID: "TCGA-01"}
	got, err := ParseUnitKey(orig.String())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got != orig {
		t.Errorf("Round trip changed key: %+v vs %+v", got, orig)
	}
}

func TestUnitKeyOrdering(t *testing.T) {
	keys := []UnitKey{
		{ExecutionID: "b", ImageID: "1"},
		{ExecutionID: "a", ImageID: "2"},
		{ExecutionID: "a", ImageID: "1"},
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	want := []UnitKey{
		{ExecutionID: "a", ImageID: "1"},
		{ExecutionID: "a", ImageID: "2"},
		{ExecutionID: "b", ImageID: "1"},
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], keys[i])
		}
	}
}

func TestAnalysisFrame(t *testing.T) {
	a := Analysis{ImageWidth: 2000, ImageHeight: 1500}
	frame := a.Frame()
	if frame.Width != 2000 || frame.Height != 1500 {
		t.Errorf("Unexpected frame: %+v", frame)
	}
}
