// Package batch groups transformed marks into fixed-capacity output
// batches and flushes each as one self-contained turtle artifact. A Writer
// is scoped to exactly one work unit and discarded after its final flush,
// so batches never span units.
package batch

import (
	"fmt"

	"geoetl/pkg/geometry"
	"geoetl/pkg/models"
	"geoetl/pkg/rdf"
)

// Options configure artifact placement and compression.
type Options struct {
	BaseDir          string
	Capacity         int
	Compress         bool
	CompressionLevel int
}

// Writer accumulates marks for one unit into sequential batches. Add
// transforms each mark's geometry and buffers it; full batches flush
// immediately, the trailing partial batch flushes in Finish.
type Writer struct {
	analysis models.Analysis
	opts     Options

	builder *rdf.BatchBuilder
	seq     int // current batch number, 1-based
	inBatch int // marks in the current batch
	counter int // marks attempted across the whole unit

	written int
	skipped int
	flushed int
}

// NewWriter creates a batch writer for one unit.
func NewWriter(analysis models.Analysis, opts Options) *Writer {
	if opts.Capacity < 1 {
		opts.Capacity = 1000
	}
	return &Writer{
		analysis: analysis,
		opts:     opts,
		seq:      1,
	}
}

// Add converts one mark and appends it to the current batch. Marks whose
// geometry cannot be converted are counted as skipped and do not abort the
// batch.
func (w *Writer) Add(mark models.Mark) error {
	w.counter++

	wkt, ok := geometry.PolygonWKT(mark.Polygon, w.analysis.Frame())
	if !ok {
		w.skipped++
		return nil
	}

	if w.builder == nil {
		w.builder = rdf.NewBatchBuilder(w.analysis, w.seq)
	}
	w.builder.AddFeature(wkt, mark, w.counter)
	w.inBatch++
	w.written++

	if w.inBatch >= w.opts.Capacity {
		return w.flush()
	}
	return nil
}

// Finish flushes the trailing partial batch, if any, and returns totals.
// The Writer must not be used afterwards.
func (w *Writer) Finish() (written, skipped, batches int, err error) {
	if w.inBatch > 0 {
		if err := w.flush(); err != nil {
			return 0, 0, 0, err
		}
	}
	return w.written, w.skipped, w.flushed, nil
}

// flush seals the current batch and writes its artifact.
func (w *Writer) flush() error {
	path := rdf.ArtifactPath(w.opts.BaseDir, w.analysis.Key, w.seq, w.opts.Compress)
	if err := rdf.WriteArtifact(path, w.builder.Graph(), w.opts.Compress, w.opts.CompressionLevel); err != nil {
		return fmt.Errorf("failed to write batch %d for %s: %w", w.seq, w.analysis.Key, err)
	}
	w.flushed++
	w.seq++
	w.inBatch = 0
	w.builder = nil
	return nil
}
