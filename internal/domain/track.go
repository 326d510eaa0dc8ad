package domain

import (
	"errors"
	"fmt"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// ErrUnorderedTrack is returned when track points are not in time order.
var ErrUnorderedTrack = errors.New("track points are not in chronological order")

// Track is a chronologically ordered sequence of geolocated points.
type Track struct {
	points []GeoPoint
}

// NewTrack builds a track from points already sorted by time. Equal
// timestamps are allowed.
func NewTrack(points []GeoPoint) (*Track, error) {
	for i := 1; i < len(points); i++ {
		if points[i].Time.Before(points[i-1].Time) {
			return nil, fmt.Errorf("%w: point %d at %s precedes point %d at %s", ErrUnorderedTrack,
				i, points[i].Time.Format(TimestampLayout), i-1, points[i-1].Time.Format(TimestampLayout))
		}
	}
	return &Track{points: points}, nil
}

// Len returns the number of points.
func (t *Track) Len() int { return len(t.points) }

// CentroidDistances returns the great-circle distance in meters between
// each pair of consecutive points. The result has Len()-1 elements.
func (t *Track) CentroidDistances() []float64 {
	if len(t.points) < 2 {
		return nil
	}
	out := make([]float64, len(t.points)-1)
	for i := 1; i < len(t.points); i++ {
		out[i-1] = Distance(t.points[i-1], t.points[i])
	}
	return out
}

// TotalDistance returns the summed length of the track in meters.
func (t *Track) TotalDistance() float64 {
	var total float64
	for _, d := range t.CentroidDistances() {
		total += d
	}
	return total
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b GeoPoint) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}
