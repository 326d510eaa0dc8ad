package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding labels each summary's last position with a place name.
// If geocoder is nil the summaries are returned unchanged; a failed lookup
// marks only that summary (graceful degradation).
func EnrichWithGeocoding(ctx context.Context, summaries []VesselSummary, geocoder Geocoder, logger *slog.Logger) []VesselSummary {
	if geocoder == nil {
		return summaries
	}

	for i := range summaries {
		s := &summaries[i]
		result, err := geocoder.ReverseGeocode(ctx, s.LastLat, s.LastLon)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"vessel", s.VesselName,
				"lat", s.LastLat,
				"lon", s.LastLon,
				"error", err,
			)
			s.GeoSource = "failed"
			continue
		}
		if result.FormattedAddress == "" {
			s.GeoSource = "original"
			continue
		}
		s.LastPlace = result.FormattedAddress
		s.GeoSource = "reverse"
	}
	return summaries
}
