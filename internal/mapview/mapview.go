// Package mapview builds the scatter-map figure for enriched ship positions.
//
// The figure is a GeoJSON FeatureCollection with one Point per record plus
// the metadata the browser needs to draw it: title, initial zoom and center,
// and a legend mapping each vessel name to its color.
package mapview

import (
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
	geojson "github.com/paulmach/go.geojson"
)

const (
	// Title is shown above the map.
	Title = "Ship Travel"

	// DefaultZoom is the initial map zoom level.
	DefaultZoom = 6

	// ColorProperty holds each feature's marker color.
	ColorProperty = "marker-color"
)

// Palette is the qualitative color sequence assigned to vessels in order of
// first appearance. It wraps when there are more vessels than colors.
var Palette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

// LegendEntry is one vessel in the map legend.
type LegendEntry struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Points int    `json:"points"`
}

// Figure is the complete map payload.
type Figure struct {
	Title string `json:"title"`
	Zoom  int    `json:"zoom"`
	// Center is [lat, lon], the mean of all points.
	Center   [2]float64                 `json:"center"`
	Legend   []LegendEntry              `json:"legend"`
	Features *geojson.FeatureCollection `json:"features"`
}

// Build creates the figure for t. Every feature carries the record's export
// columns as properties; the geolocation itself is only in the geometry.
// A non-positive zoom selects DefaultZoom.
func Build(t *domain.EnrichedTable, zoom int) *Figure {
	if zoom <= 0 {
		zoom = DefaultZoom
	}

	fc := geojson.NewFeatureCollection()
	header := t.Header()
	colors := make(map[string]int)
	var legend []LegendEntry
	var sumLat, sumLon float64

	for i := range t.Records {
		rec := &t.Records[i]

		idx, ok := colors[rec.VesselName]
		if !ok {
			idx = len(legend)
			colors[rec.VesselName] = idx
			legend = append(legend, LegendEntry{
				Name:  rec.VesselName,
				Color: Palette[idx%len(Palette)],
			})
		}
		legend[idx].Points++

		// GeoJSON positions are [lon, lat].
		f := geojson.NewPointFeature([]float64{rec.Lon, rec.Lat})
		for _, col := range header {
			f.SetProperty(col, rec.Value(col))
		}
		f.SetProperty(ColorProperty, legend[idx].Color)
		fc.AddFeature(f)

		sumLat += rec.Lat
		sumLon += rec.Lon
	}

	fig := &Figure{
		Title:    Title,
		Zoom:     zoom,
		Legend:   reverse(legend),
		Features: fc,
	}
	if n := float64(t.Len()); n > 0 {
		fig.Center = [2]float64{sumLat / n, sumLon / n}
	}
	return fig
}

// JSON encodes the figure for the map page.
func (f *Figure) JSON() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode map figure: %w", err)
	}
	return data, nil
}

// reverse lists the most recently introduced vessel first, matching the
// legend trace order of the scatter map.
func reverse(entries []LegendEntry) []LegendEntry {
	out := make([]LegendEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}
