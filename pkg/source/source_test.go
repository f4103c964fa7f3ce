package source

import (
	"context"
	"testing"

	"geoetl/pkg/models"
)

func seedFake(keys ...models.UnitKey) *Fake {
	f := NewFake()
	for _, key := range keys {
		f.AddUnit(models.Analysis{Key: key, ImageWidth: 100, ImageHeight: 100}, []models.Mark{{}})
	}
	return f
}

func collect(t *testing.T, f *Fake, filter Filter) []models.UnitKey {
	t.Helper()
	var got []models.UnitKey
	err := f.EnumerateUnits(context.Background(), filter, func(key models.UnitKey) error {
		got = append(got, key)
		return nil
	})
	if err != nil {
		t.Fatalf("EnumerateUnits failed: %v", err)
	}
	return got
}

func TestEnumerateOrdering(t *testing.T) {
	f := seedFake(
		models.UnitKey{ExecutionID: "b", ImageID: "1"},
		models.UnitKey{ExecutionID: "a", ImageID: "2"},
		models.UnitKey{ExecutionID: "a", ImageID: "1"},
	)

	got := collect(t, f, Filter{})
	want := []models.UnitKey{
		{ExecutionID: "a", ImageID: "1"},
		{ExecutionID: "a", ImageID: "2"},
		{ExecutionID: "b", ImageID: "1"},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d keys, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestEnumerateAfterCursor(t *testing.T) {
	f := seedFake(
		models.UnitKey{ExecutionID: "a", ImageID: "1"},
		models.UnitKey{ExecutionID: "a", ImageID: "2"},
		models.UnitKey{ExecutionID: "a", ImageID: "3"},
	)

	got := collect(t, f, Filter{After: models.UnitKey{ExecutionID: "a", ImageID: "2"}})
	if len(got) != 1 || got[0].ImageID != "3" {
		t.Errorf("Expected only the key after the cursor, got %v", got)
	}
}

func TestEnumerateExplicitKeys(t *testing.T) {
	f := seedFake(
		models.UnitKey{ExecutionID: "a", ImageID: "1"},
		models.UnitKey{ExecutionID: "a", ImageID: "2"},
	)

	// replay mode visits exactly the requested keys, in canonical order
	replay := []models.UnitKey{
		{ExecutionID: "a", ImageID: "2"},
		{ExecutionID: "a", ImageID: "1"},
	}
	got := collect(t, f, Filter{Keys: replay})
	if len(got) != 2 || got[0].ImageID != "1" || got[1].ImageID != "2" {
		t.Errorf("Expected sorted replay keys, got %v", got)
	}
}

func TestEnumerateCancellation(t *testing.T) {
	f := seedFake(
		models.UnitKey{ExecutionID: "a", ImageID: "1"},
		models.UnitKey{ExecutionID: "a", ImageID: "2"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.EnumerateUnits(ctx, Filter{}, func(models.UnitKey) error {
		t.Fatal("Callback should not run after cancellation")
		return nil
	})
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
