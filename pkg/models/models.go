package models

import (
	"fmt"
	"strings"
	"time"
)

// UnitKey identifies one unit of work: a single analysis run applied to a
// single whole-slide image. Units are independent and individually
// retryable; all marks belonging to a unit are converted together.
type UnitKey struct {
	ExecutionID string `json:"execution_id"`
	ImageID     string `json:"image_id"`
}

// String renders the key in its canonical "execution:image" form, which is
// also the form used in checkpoint documents and replay lists.
func (k UnitKey) String() string {
	return k.ExecutionID + ":" + k.ImageID
}

// Less orders keys lexicographically by (execution_id, image_id).
func (k UnitKey) Less(other UnitKey) bool {
	if k.ExecutionID != other.ExecutionID {
		return k.ExecutionID < other.ExecutionID
	}
	return k.ImageID < other.ImageID
}

// IsZero reports whether the key is empty.
func (k UnitKey) IsZero() bool {
	return k.ExecutionID == "" && k.ImageID == ""
}

// ParseUnitKey parses the canonical "execution:image" form.
func ParseUnitKey(s string) (UnitKey, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return UnitKey{}, fmt.Errorf("invalid unit key %q: want execution:image", s)
	}
	return UnitKey{ExecutionID: parts[0], ImageID: parts[1]}, nil
}

// UnitStatus is the checkpoint lifecycle state of a work unit.
type UnitStatus string

const (
	StatusPending   UnitStatus = "pending"
	StatusClaimed   UnitStatus = "claimed"
	StatusCompleted UnitStatus = "completed"
	StatusFailed    UnitStatus = "failed"
)

// Analysis is the per-unit context fetched once before mark streaming. It
// carries the normalization frame used to denormalize polygon coordinates
// and the identifiers stamped into every batch header.
type Analysis struct {
	Key         UnitKey
	CaseID      string
	ImageWidth  int
	ImageHeight int
	CreatedAt   time.Time
}

// Frame returns the image-space normalization frame for this analysis.
func (a Analysis) Frame() Frame {
	return Frame{Width: a.ImageWidth, Height: a.ImageHeight}
}

// Frame is the pixel-space extent polygon coordinates are scaled into.
type Frame struct {
	Width  int
	Height int
}

// Point is one polygon vertex in the normalized [0,1] coordinate frame.
type Point struct {
	X float64
	Y float64
}

// Mark is one segmentation record. It is decoded from the loosely-typed
// source document at the fetch boundary; nothing downstream inspects raw
// documents. Marks are immutable once read.
type Mark struct {
	ID             string
	Polygon        []Point
	Area           float64
	Classification string
	Probability    float64
}

// UnitResult summarizes one processed unit, successful or not.
type UnitResult struct {
	Key      UnitKey
	Written  int
	Skipped  int
	Batches  int
	Err      error
	Duration time.Duration
}
