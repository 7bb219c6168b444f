package geo

import (
	"math"
	"time"

	"github.com/example/driver-dispatch/internal/models"
)

const (
	earthRadiusMiles = 3959.0
	metersPerMile    = 1609.34
)

// DistanceMeters returns the great-circle distance between two coordinates
// using the haversine formula.
func DistanceMeters(a, b models.Coord) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMiles * c * metersPerMile
}

// Throttle decides whether a position sample is significant enough to send
// as a heartbeat. Both thresholds must pass; the very first sample always
// passes so the backend gets an initial fix.
type Throttle struct {
	MinInterval time.Duration
	MinDistance float64 // meters
}

func (t Throttle) ShouldEmitHeartbeat(prev *models.Coord, next models.Coord, lastBeat, now time.Time) bool {
	if prev == nil {
		return true
	}
	if now.Sub(lastBeat) < t.MinInterval {
		return false
	}
	return DistanceMeters(*prev, next) >= t.MinDistance
}
