// Package source abstracts the mark store the pipeline reads from. The
// production implementation speaks to MongoDB; tests substitute in-memory
// fakes. Documents are decoded into the narrow typed structures of
// pkg/models at this boundary, so nothing downstream inspects raw BSON.
package source

import (
	"context"

	"geoetl/pkg/models"
)

// Source exposes the read-only operations the pipeline and the recovery
// analyzer need: enumerate units, fetch per-unit context, count marks, and
// stream marks in a stable order.
type Source interface {
	// EnumerateUnits calls fn for every unit key matching the filter, in
	// lexicographic (execution_id, image_id) order. Enumeration stops early
	// when fn returns an error or the context is cancelled.
	EnumerateUnits(ctx context.Context, filter Filter, fn func(models.UnitKey) error) error

	// GetAnalysis fetches the per-unit context document.
	GetAnalysis(ctx context.Context, key models.UnitKey) (models.Analysis, error)

	// CountMarks returns the authoritative number of marks in a unit.
	CountMarks(ctx context.Context, key models.UnitKey) (int64, error)

	// StreamMarks calls fn for every mark in the unit, in a stable order,
	// without materializing the unit wholesale.
	StreamMarks(ctx context.Context, key models.UnitKey, fn func(models.Mark) error) error
}

// Filter narrows unit enumeration. Zero value enumerates everything.
type Filter struct {
	// After skips all keys less than or equal to this key. Used for manual
	// resumption.
	After models.UnitKey

	// Keys, when non-nil, restricts enumeration to this explicit set, in
	// sorted order. Used for replay lists from the recovery analyzer.
	Keys []models.UnitKey
}
