package geometry

import (
	"math"
	"testing"

	"geoetl/pkg/models"
)

var testFrame = models.Frame{Width: 1000, Height: 500}

func TestPolygonWKT(t *testing.T) {
	t.Run("DenormalizesAndCloses", func(t *testing.T) {
		polygon := []models.Point{
			{X: 0.1, Y: 0.2},
			{X: 0.5, Y: 0.2},
			{X: 0.5, Y: 0.8},
		}
		wkt, ok := PolygonWKT(polygon, testFrame)
		if !ok {
			t.Fatal("Expected conversion to succeed")
		}
		want := "POLYGON ((100.00 100.00, 500.00 100.00, 500.00 400.00, 100.00 100.00))"
		if wkt != want {
			t.Errorf("Unexpected WKT:\n got %s\nwant %s", wkt, want)
		}
	})

	t.Run("AlreadyClosedRingIsNotDoubled", func(t *testing.T) {
		polygon := []models.Point{
			{X: 0.1, Y: 0.2},
			{X: 0.5, Y: 0.2},
			{X: 0.5, Y: 0.8},
			{X: 0.1, Y: 0.2},
		}
		wkt, ok := PolygonWKT(polygon, testFrame)
		if !ok {
			t.Fatal("Expected conversion to succeed")
		}
		want := "POLYGON ((100.00 100.00, 500.00 100.00, 500.00 400.00, 100.00 100.00))"
		if wkt != want {
			t.Errorf("Unexpected WKT:\n got %s\nwant %s", wkt, want)
		}
	})

	t.Run("DegenerateInput", func(t *testing.T) {
		cases := []struct {
			name    string
			polygon []models.Point
			frame   models.Frame
		}{
			{"Empty", nil, testFrame},
			{"TwoVertices", []models.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, testFrame},
			{"ZeroFrame", []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, models.Frame{}},
			{"NaN", []models.Point{{X: math.NaN(), Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, testFrame},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, ok := PolygonWKT(tc.polygon, tc.frame); ok {
					t.Error("Expected conversion to fail")
				}
			})
		}
	})
}

func TestArea(t *testing.T) {
	// unit square
	square := []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	if area := Area(square); math.Abs(area-1.0) > 1e-9 {
		t.Errorf("Expected area 1.0, got %f", area)
	}
	if area := Area(square[:2]); area != 0 {
		t.Errorf("Expected zero area for degenerate polygon, got %f", area)
	}
}

func TestPerimeter(t *testing.T) {
	square := []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	if p := Perimeter(square); math.Abs(p-4.0) > 1e-9 {
		t.Errorf("Expected perimeter 4.0, got %f", p)
	}
}

func TestBounds(t *testing.T) {
	polygon := []models.Point{{X: 0.2, Y: 0.7}, {X: 0.9, Y: 0.1}, {X: 0.4, Y: 0.3}}
	minX, minY, maxX, maxY, ok := Bounds(polygon)
	if !ok {
		t.Fatal("Expected bounds for non-empty polygon")
	}
	if minX != 0.2 || minY != 0.1 || maxX != 0.9 || maxY != 0.7 {
		t.Errorf("Unexpected bounds: %f %f %f %f", minX, minY, maxX, maxY)
	}
	if _, _, _, _, ok := Bounds(nil); ok {
		t.Error("Expected no bounds for empty polygon")
	}
}
