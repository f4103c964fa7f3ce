package batch

import (
	"compress/gzip"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"geoetl/pkg/models"
	"geoetl/pkg/rdf"
)

func testAnalysis() models.Analysis {
	return models.Analysis{
		Key:         models.UnitKey{ExecutionID: "exec1", ImageID: "img1"},
		CaseID:      "case-1",
		ImageWidth:  1000,
		ImageHeight: 1000,
		CreatedAt:   time.Date(2023, 4, 2, 12, 0, 0, 0, time.UTC),
	}
}

func validMark() models.Mark {
	return models.Mark{
		Polygon:     []models.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.1}, {X: 0.2, Y: 0.2}},
		Probability: 1.0,
	}
}

// countFeatures decompresses an artifact and counts its member features.
func countFeatures(t *testing.T, path string) int {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open artifact %s: %v", path, err)
	}
	defer file.Close()
	gz, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("Artifact %s is not gzip: %v", path, err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("Failed to decompress %s: %v", path, err)
	}
	return strings.Count(string(data), "rdfs:member")
}

func TestWriterBatchSizing(t *testing.T) {
	dir := t.TempDir()
	analysis := testAnalysis()
	w := NewWriter(analysis, Options{
		BaseDir:          dir,
		Capacity:         1000,
		Compress:         true,
		CompressionLevel: 6,
	})

	for i := 0; i < 2500; i++ {
		if err := w.Add(validMark()); err != nil {
			t.Fatalf("Add failed at mark %d: %v", i, err)
		}
	}
	written, skipped, batches, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if written != 2500 || skipped != 0 || batches != 3 {
		t.Fatalf("Expected 2500 written, 0 skipped, 3 batches; got %d/%d/%d", written, skipped, batches)
	}

	wantSizes := []int{1000, 1000, 500}
	for i, want := range wantSizes {
		path := rdf.ArtifactPath(dir, analysis.Key, i+1, true)
		if got := countFeatures(t, path); got != want {
			t.Errorf("Batch %d: expected %d features, got %d", i+1, want, got)
		}
	}
	// no fourth artifact
	if _, err := os.Stat(rdf.ArtifactPath(dir, analysis.Key, 4, true)); !os.IsNotExist(err) {
		t.Error("Unexpected fourth artifact")
	}
}

func TestWriterSkipsMalformedGeometry(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(testAnalysis(), Options{
		BaseDir:          dir,
		Capacity:         10,
		Compress:         true,
		CompressionLevel: 6,
	})

	if err := w.Add(validMark()); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := w.Add(models.Mark{Polygon: nil}); err != nil {
		t.Fatalf("Add of malformed mark failed: %v", err)
	}
	written, skipped, batches, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if written != 1 || skipped != 1 || batches != 1 {
		t.Errorf("Expected 1 written, 1 skipped, 1 batch; got %d/%d/%d", written, skipped, batches)
	}
}

func TestWriterEmptyUnitFlushesNothing(t *testing.T) {
	dir := t.TempDir()
	analysis := testAnalysis()
	w := NewWriter(analysis, Options{BaseDir: dir, Capacity: 10, Compress: true, CompressionLevel: 6})

	written, skipped, batches, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if written != 0 || skipped != 0 || batches != 0 {
		t.Errorf("Expected all zero totals, got %d/%d/%d", written, skipped, batches)
	}
	if _, err := os.Stat(rdf.ArtifactPath(dir, analysis.Key, 1, true)); !os.IsNotExist(err) {
		t.Error("Empty unit should produce no artifacts")
	}
}
