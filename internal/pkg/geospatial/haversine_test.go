package geospatial

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	// Seoul City Hall to Gwanghwamun, roughly 1 km.
	d := Haversine(37.5665, 126.9780, 37.5759, 126.9769)
	if d < 1000 || d > 1100 {
		t.Errorf("expected ~1050m, got %.1f", d)
	}

	if got := Haversine(10, 10, 10, 10); got != 0 {
		t.Errorf("expected 0 for identical points, got %f", got)
	}
}

func TestPathLength(t *testing.T) {
	if got := PathLength(nil); got != 0 {
		t.Errorf("expected 0 for empty path, got %f", got)
	}
	if got := PathLength([]Point{{1, 1}}); got != 0 {
		t.Errorf("expected 0 for single point, got %f", got)
	}

	a := Point{37.5665, 126.9780}
	b := Point{37.5759, 126.9769}
	c := Point{37.5796, 126.9770}
	want := Haversine(a.Lat, a.Lon, b.Lat, b.Lon) + Haversine(b.Lat, b.Lon, c.Lat, c.Lon)
	if got := PathLength([]Point{a, b, c}); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}
