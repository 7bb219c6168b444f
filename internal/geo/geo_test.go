package geo

import (
	"testing"
	"time"

	"github.com/example/driver-dispatch/internal/models"
)

func defaultThrottle() Throttle {
	return Throttle{MinInterval: 20 * time.Second, MinDistance: 100}
}

func TestDistanceZero(t *testing.T) {
	a := models.Coord{Lat: 40.7128, Lon: -74.0060}
	if d := DistanceMeters(a, a); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][2]models.Coord{
		{{Lat: 40.7128, Lon: -74.0060}, {Lat: 40.7589, Lon: -73.9851}},
		{{Lat: -33.8688, Lon: 151.2093}, {Lat: 51.5074, Lon: -0.1278}},
		{{Lat: 0, Lon: 0}, {Lat: 0.001, Lon: 0.001}},
	}
	for _, p := range pairs {
		ab := DistanceMeters(p[0], p[1])
		ba := DistanceMeters(p[1], p[0])
		if ab != ba {
			t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
		}
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// Times Square to Empire State Building, roughly 1.0-1.1 km.
	a := models.Coord{Lat: 40.7580, Lon: -73.9855}
	b := models.Coord{Lat: 40.7484, Lon: -73.9857}
	d := DistanceMeters(a, b)
	if d < 900 || d > 1300 {
		t.Fatalf("distance out of expected range: %f", d)
	}
}

func TestFirstSampleAlwaysEmits(t *testing.T) {
	th := defaultThrottle()
	now := time.Now()
	if !th.ShouldEmitHeartbeat(nil, models.Coord{Lat: 12.34, Lon: 56.78}, time.Time{}, now) {
		t.Fatal("first sample should always emit")
	}
}

func TestThrottleByTime(t *testing.T) {
	th := defaultThrottle()
	prev := models.Coord{Lat: 40.0, Lon: -74.0}
	next := models.Coord{Lat: 41.0, Lon: -74.0} // far more than 100m
	last := time.Now()
	if th.ShouldEmitHeartbeat(&prev, next, last, last.Add(19*time.Second)) {
		t.Fatal("should not emit before min interval regardless of distance")
	}
	if !th.ShouldEmitHeartbeat(&prev, next, last, last.Add(20*time.Second)) {
		t.Fatal("should emit once both thresholds pass")
	}
}

func TestThrottleByDistance(t *testing.T) {
	th := defaultThrottle()
	prev := models.Coord{Lat: 40.0, Lon: -74.0}
	next := models.Coord{Lat: 40.0005, Lon: -74.0} // ~55m
	last := time.Now()
	if th.ShouldEmitHeartbeat(&prev, next, last, last.Add(time.Hour)) {
		t.Fatal("should not emit under min distance regardless of elapsed time")
	}
}
