// Package geometry converts normalized segmentation polygons into
// image-space WKT and derives scalar measurements from them. All functions
// are pure; malformed input yields an ok=false result rather than an error,
// so one bad record never aborts a batch.
package geometry

import (
	"fmt"
	"math"
	"strings"

	"geoetl/pkg/models"
)

// PolygonWKT renders a polygon, given in the normalized [0,1] coordinate
// frame, as a WKT POLYGON in pixel space. Coordinates are scaled by the
// frame dimensions and formatted with two decimal places. The ring is
// closed if the source left it open. Returns ok=false for degenerate input
// (fewer than three vertices, or a non-positive frame).
func PolygonWKT(polygon []models.Point, frame models.Frame) (string, bool) {
	if len(polygon) < 3 || frame.Width <= 0 || frame.Height <= 0 {
		return "", false
	}

	coords := make([]string, 0, len(polygon)+1)
	for _, p := range polygon {
		px := p.X * float64(frame.Width)
		py := p.Y * float64(frame.Height)
		if math.IsNaN(px) || math.IsInf(px, 0) || math.IsNaN(py) || math.IsInf(py, 0) {
			return "", false
		}
		coords = append(coords, fmt.Sprintf("%.2f %.2f", px, py))
	}
	if coords[0] != coords[len(coords)-1] {
		coords = append(coords, coords[0])
	}

	return fmt.Sprintf("POLYGON ((%s))", strings.Join(coords, ", ")), true
}

// Area computes the polygon's area in the normalized frame using the
// shoelace formula. Returns 0 for degenerate polygons.
func Area(polygon []models.Point) float64 {
	if len(polygon) < 3 {
		return 0
	}
	var sum float64
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}
	return math.Abs(sum) / 2
}

// Perimeter computes the closed-ring perimeter in the normalized frame.
func Perimeter(polygon []models.Point) float64 {
	if len(polygon) < 2 {
		return 0
	}
	var sum float64
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		dx := polygon[j].X - polygon[i].X
		dy := polygon[j].Y - polygon[i].Y
		sum += math.Hypot(dx, dy)
	}
	return sum
}

// Bounds returns the polygon's bounding box as (minX, minY, maxX, maxY).
// ok=false for an empty polygon.
func Bounds(polygon []models.Point) (minX, minY, maxX, maxY float64, ok bool) {
	if len(polygon) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = polygon[0].X, polygon[0].Y
	maxX, maxY = minX, minY
	for _, p := range polygon[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY, true
}
