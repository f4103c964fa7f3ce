package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"geoetl/pkg/models"
)

// Fake is an in-memory Source for tests and offline experiments. Units are
// registered with their analysis context and marks; enumeration follows
// the same ordering contract as the Mongo implementation.
type Fake struct {
	mu       sync.Mutex
	analyses map[models.UnitKey]models.Analysis
	marks    map[models.UnitKey][]models.Mark

	// StreamErr, when set for a key, aborts that unit's mark stream.
	StreamErr map[models.UnitKey]error
	// EnumerateErr, when set, fails enumeration outright.
	EnumerateErr error
}

// NewFake creates an empty fake source.
func NewFake() *Fake {
	return &Fake{
		analyses:  make(map[models.UnitKey]models.Analysis),
		marks:     make(map[models.UnitKey][]models.Mark),
		StreamErr: make(map[models.UnitKey]error),
	}
}

// AddUnit registers a unit with its context and marks.
func (f *Fake) AddUnit(analysis models.Analysis, marks []models.Mark) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses[analysis.Key] = analysis
	f.marks[analysis.Key] = marks
}

func (f *Fake) sortedKeys() []models.UnitKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]models.UnitKey, 0, len(f.analyses))
	for key := range f.analyses {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (f *Fake) EnumerateUnits(ctx context.Context, filter Filter, fn func(models.UnitKey) error) error {
	if f.EnumerateErr != nil {
		return f.EnumerateErr
	}
	if filter.Keys != nil {
		keys := make([]models.UnitKey, len(filter.Keys))
		copy(keys, filter.Keys)
		sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		return nil
	}
	for _, key := range f.sortedKeys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !filter.After.IsZero() && !filter.After.Less(key) {
			continue
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fake) GetAnalysis(ctx context.Context, key models.UnitKey) (models.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	analysis, ok := f.analyses[key]
	if !ok {
		return models.Analysis{}, fmt.Errorf("analysis %s not found", key)
	}
	return analysis, nil
}

func (f *Fake) CountMarks(ctx context.Context, key models.UnitKey) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.marks[key])), nil
}

func (f *Fake) StreamMarks(ctx context.Context, key models.UnitKey, fn func(models.Mark) error) error {
	f.mu.Lock()
	marks := f.marks[key]
	streamErr := f.StreamErr[key]
	f.mu.Unlock()

	if streamErr != nil {
		return streamErr
	}
	for _, mark := range marks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(mark); err != nil {
			return err
		}
	}
	return nil
}
