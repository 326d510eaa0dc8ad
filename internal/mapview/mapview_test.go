package mapview

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrichedFixture(t *testing.T) *domain.EnrichedTable {
	t.Helper()

	data := "MMSI,BaseDateTime,LAT,LON,SOG,VesselName,IMO,Length\n" +
		"111,2020-01-01T00:00:00,29.0,-94.0,10,ALPHA,IMO123,50\n" +
		"222,2020-01-01T00:05:00,30.0,-95.0,4,BRAVO,IMO456,80\n" +
		"111,2020-01-01T00:10:00,29.5,-94.5,20,ALPHA,IMO123,50\n"
	table, err := domain.ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	matched, err := domain.MatchIdentities(table, []string{"ALPHA", "BRAVO"})
	require.NoError(t, err)
	enriched, err := domain.NewEnricher("").Enrich(matched, table.Columns)
	require.NoError(t, err)
	return enriched
}

func TestBuild(t *testing.T) {
	fig := Build(enrichedFixture(t), 0)

	assert.Equal(t, "Ship Travel", fig.Title)
	assert.Equal(t, DefaultZoom, fig.Zoom)
	assert.InDelta(t, 29.5, fig.Center[0], 1e-9)
	assert.InDelta(t, -94.5, fig.Center[1], 1e-9)

	// Colors follow first appearance; the legend lists the newest first.
	assert.Equal(t, []LegendEntry{
		{Name: "bravo", Color: Palette[1], Points: 1},
		{Name: "alpha", Color: Palette[0], Points: 2},
	}, fig.Legend)

	require.Len(t, fig.Features.Features, 3)
	first := fig.Features.Features[0]
	assert.Equal(t, []float64{-94.0, 29.0}, first.Geometry.Point)
	assert.Equal(t, "alpha", first.Properties[domain.ColVesselName])
	assert.Equal(t, "123", first.Properties[domain.ColIMO])
	assert.Equal(t, "0", first.Properties[domain.ColTravelDistance])
	assert.Equal(t, Palette[0], first.Properties[ColorProperty])
	assert.NotContains(t, first.Properties, "geopoint")
}

func TestBuild_CustomZoom(t *testing.T) {
	fig := Build(enrichedFixture(t), 9)
	assert.Equal(t, 9, fig.Zoom)
}

func TestBuild_Empty(t *testing.T) {
	fig := Build(&domain.EnrichedTable{}, 6)
	assert.Empty(t, fig.Features.Features)
	assert.Empty(t, fig.Legend)
	assert.Equal(t, [2]float64{}, fig.Center)
}

func TestBuild_PaletteWraps(t *testing.T) {
	table := &domain.EnrichedTable{}
	for i := 0; i < len(Palette)+1; i++ {
		table.Records = append(table.Records, domain.EnrichedRecord{
			VesselName: string(rune('a' + i)),
			Fields:     map[string]string{},
		})
	}

	fig := Build(table, 6)
	require.Len(t, fig.Legend, len(Palette)+1)
	// Reversed legend: the first entry is the last vessel seen.
	assert.Equal(t, Palette[0], fig.Legend[0].Color)
}

func TestFigure_JSON(t *testing.T) {
	data, err := Build(enrichedFixture(t), 6).JSON()
	require.NoError(t, err)

	var payload struct {
		Title    string          `json:"title"`
		Zoom     int             `json:"zoom"`
		Features json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "Ship Travel", payload.Title)
	assert.Equal(t, 6, payload.Zoom)

	fc, err := geojson.UnmarshalFeatureCollection(payload.Features)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)
	assert.True(t, fc.Features[1].Geometry.IsPoint())

	name, err := fc.Features[1].PropertyString(domain.ColVesselName)
	require.NoError(t, err)
	assert.Equal(t, "bravo", name)
}
