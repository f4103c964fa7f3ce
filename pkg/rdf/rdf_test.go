package rdf

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"geoetl/pkg/models"
)

func testAnalysis() models.Analysis {
	return models.Analysis{
		Key:         models.UnitKey{ExecutionID: "exec1", ImageID: "img1"},
		CaseID:      "case-17",
		ImageWidth:  40000,
		ImageHeight: 32000,
		CreatedAt:   time.Date(2023, 4, 2, 12, 0, 0, 0, time.UTC),
	}
}

func testMark() models.Mark {
	return models.Mark{ID: "m1", Probability: 0.93}
}

func TestTurtleOutput(t *testing.T) {
	b := NewBatchBuilder(testAnalysis(), 1)
	b.AddFeature("POLYGON ((0.00 0.00, 1.00 0.00, 1.00 1.00, 0.00 0.00))", testMark(), 1)

	var buf bytes.Buffer
	if err := b.Graph().WriteTurtle(&buf); err != nil {
		t.Fatalf("WriteTurtle failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"@prefix geo: <http://www.opengis.net/ont/geosparql#> .",
		"a so:ImageObject",
		`dc:identifier "case-17"`,
		`exif:width "40000"^^xsd:integer`,
		"<> a geo:FeatureCollection",
		`hal:executionId "exec1"`,
		"prov:wasGeneratedBy _:prov_1",
		"_:prov_1 a prov:Activity",
		"rdfs:member _:f1",
		"_:f1 a geo:Feature",
		"geo:hasGeometry _:g1",
		"^^geo:wktLiteral",
		"hal:classification sno:68841002",
		`hal:hasProbability "0.93"^^xsd:float`,
		`dc:date "2023-04-02T12:00:00Z"^^xsd:dateTime`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Turtle output missing %q:\n%s", want, out)
		}
	}
}

func TestLiteralEscaping(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"Plain", "exec1", `"exec1"`},
		{"Quote", `id "7"`, `"id \"7\""`},
		{"Backslash", `a\b`, `"a\\b"`},
		{"Newline", "a\nb", `"a\nb"`},
		{"Tab", "a\tb", `"a\tb"`},
		// turtle has no \x or \v escapes; control characters become \u
		{"VerticalTab", "a\vb", `"a\u000Bb"`},
		{"Bell", "a\ab", `"a\u0007b"`},
		{"Unicode", "münchen", `"münchen"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.value).render(defaultPrefixes); got != tt.want {
				t.Errorf("render(%q) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestSerializationIsDeterministic(t *testing.T) {
	build := func() string {
		b := NewBatchBuilder(testAnalysis(), 3)
		for i := 1; i <= 5; i++ {
			b.AddFeature("POLYGON ((0.00 0.00, 1.00 0.00, 1.00 1.00, 0.00 0.00))", testMark(), i)
		}
		var buf bytes.Buffer
		if err := b.Graph().WriteTurtle(&buf); err != nil {
			t.Fatalf("WriteTurtle failed: %v", err)
		}
		return buf.String()
	}

	if build() != build() {
		t.Error("Serializing the same batch twice produced different bytes")
	}
}

func TestArtifactPath(t *testing.T) {
	key := models.UnitKey{ExecutionID: "exec1", ImageID: "img1"}
	got := ArtifactPath("/out", key, 7, true)
	want := filepath.Join("/out", "exec1", "img1", "batch_000007.ttl.gz")
	if got != want {
		t.Errorf("ArtifactPath = %s, want %s", got, want)
	}
	got = ArtifactPath("/out", key, 7, false)
	want = filepath.Join("/out", "exec1", "img1", "batch_000007.ttl")
	if got != want {
		t.Errorf("ArtifactPath = %s, want %s", got, want)
	}
}

func TestWriteArtifact(t *testing.T) {
	dir := t.TempDir()
	b := NewBatchBuilder(testAnalysis(), 1)
	b.AddFeature("POLYGON ((0.00 0.00, 1.00 0.00, 1.00 1.00, 0.00 0.00))", testMark(), 1)

	t.Run("Plain", func(t *testing.T) {
		path := filepath.Join(dir, "batch.ttl")
		if err := WriteArtifact(path, b.Graph(), false, 6); err != nil {
			t.Fatalf("WriteArtifact failed: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read artifact: %v", err)
		}
		if !strings.Contains(string(data), "geo:FeatureCollection") {
			t.Error("Artifact missing expected content")
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Error("Temporary file left behind")
		}
	})

	t.Run("Compressed", func(t *testing.T) {
		path := filepath.Join(dir, "batch.ttl.gz")
		if err := WriteArtifact(path, b.Graph(), true, 6); err != nil {
			t.Fatalf("WriteArtifact failed: %v", err)
		}
		file, err := os.Open(path)
		if err != nil {
			t.Fatalf("Failed to open artifact: %v", err)
		}
		defer file.Close()
		gz, err := gzip.NewReader(file)
		if err != nil {
			t.Fatalf("Artifact is not valid gzip: %v", err)
		}
		data, err := io.ReadAll(gz)
		if err != nil {
			t.Fatalf("Failed to decompress artifact: %v", err)
		}
		if !strings.Contains(string(data), "geo:FeatureCollection") {
			t.Error("Compressed artifact missing expected content")
		}
	})

	t.Run("OverwriteIsByteIdentical", func(t *testing.T) {
		path := filepath.Join(dir, "rewrite.ttl.gz")
		if err := WriteArtifact(path, b.Graph(), true, 6); err != nil {
			t.Fatalf("First write failed: %v", err)
		}
		first, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read artifact: %v", err)
		}
		if err := WriteArtifact(path, b.Graph(), true, 6); err != nil {
			t.Fatalf("Second write failed: %v", err)
		}
		second, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to re-read artifact: %v", err)
		}
		if !bytes.Equal(first, second) {
			t.Error("Rewriting the same batch produced different bytes")
		}
	})
}
