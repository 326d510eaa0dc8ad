package domain

import "time"

// VesselSummary aggregates the enriched points of one vessel name.
type VesselSummary struct {
	VesselName string
	MMSI       string
	IMO        string
	Points     int
	FirstSeen  time.Time
	LastSeen   time.Time
	MaxSpeed   float64
	// Distance sums the great-circle legs between this vessel's own
	// consecutive points, unlike Travel Distance which spans the whole
	// selection.
	Distance float64
	LastLat  float64
	LastLon  float64

	// Reverse geocoding of the last position, empty when unavailable.
	LastPlace string
	GeoSource string // "reverse", "original", "failed"
}

// SummarizeVessels groups the table by lowercased vessel name in order of
// first appearance. Records with an empty name are grouped under "".
func SummarizeVessels(t *EnrichedTable) []VesselSummary {
	index := make(map[string]int)
	var out []VesselSummary
	last := make(map[string]GeoPoint)

	for _, rec := range t.Records {
		i, ok := index[rec.VesselName]
		if !ok {
			i = len(out)
			index[rec.VesselName] = i
			out = append(out, VesselSummary{
				VesselName: rec.VesselName,
				MMSI:       rec.MMSI,
				IMO:        rec.IMO,
				FirstSeen:  rec.Time,
			})
		}

		s := &out[i]
		if prev, seen := last[rec.VesselName]; seen {
			s.Distance += Distance(prev, rec.GeoPoint)
		}
		last[rec.VesselName] = rec.GeoPoint

		s.Points++
		s.LastSeen = rec.Time
		s.LastLat = rec.Lat
		s.LastLon = rec.Lon
		if rec.Speed > s.MaxSpeed {
			s.MaxSpeed = rec.Speed
		}
		if s.IMO == "" {
			s.IMO = rec.IMO
		}
	}
	return out
}
