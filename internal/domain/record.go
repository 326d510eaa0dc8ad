package domain

import (
	"strconv"
	"time"
)

// Column names in the Marine Cadastre AIS export.
const (
	ColBaseDateTime = "BaseDateTime"
	ColVesselName   = "VesselName"
	ColIMO          = "IMO"
	ColMMSI         = "MMSI"
	ColLength       = "Length"
	ColSOG          = "SOG"
	ColLat          = "LAT"
	ColLon          = "LON"
)

// Derived column names appended by enrichment.
const (
	ColSpeed          = "Speed"
	ColTravelDistance = "Travel Distance"
	ColInfo           = "Info"
)

// RequiredColumns must all be present in an uploaded CSV header.
var RequiredColumns = []string{
	ColBaseDateTime,
	ColVesselName,
	ColIMO,
	ColMMSI,
	ColLength,
	ColSOG,
	ColLat,
	ColLon,
}

// Broadcast is one AIS position report, i.e. one CSV data row.
type Broadcast struct {
	// Row is the 1-based data row in the uploaded file (header excluded).
	Row int
	// Fields holds every column of the row keyed by header name.
	Fields map[string]string
	// Length is nil when the Length cell is empty or not numeric.
	Length *float64
}

func (b Broadcast) VesselName() string   { return b.Fields[ColVesselName] }
func (b Broadcast) IMO() string          { return b.Fields[ColIMO] }
func (b Broadcast) MMSI() string         { return b.Fields[ColMMSI] }
func (b Broadcast) BaseDateTime() string { return b.Fields[ColBaseDateTime] }

// Table is a parsed upload: the header in file order plus the rows.
type Table struct {
	Columns []string
	Rows    []Broadcast
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// GeoPoint is a coordinate with an associated timestamp and the record it
// was built from.
type GeoPoint struct {
	Lat        float64
	Lon        float64
	Time       time.Time
	Properties map[string]string
}

// EnrichedRecord is a matched broadcast plus its derived columns.
type EnrichedRecord struct {
	Row            int               `json:"row"`
	VesselName     string            `json:"vessel_name"`
	IMO            string            `json:"imo"`
	MMSI           string            `json:"mmsi"`
	BaseDateTime   string            `json:"base_date_time"`
	Time           time.Time         `json:"time"`
	Lat            float64           `json:"lat"`
	Lon            float64           `json:"lon"`
	SOG            float64           `json:"sog"`
	Speed          float64           `json:"speed"`
	TravelDistance float64           `json:"travel_distance"`
	Info           string            `json:"info"`
	Fields         map[string]string `json:"fields"`

	GeoPoint GeoPoint `json:"-"`
}

// Value returns the export cell for the given column. Input columns come
// from the normalized field map; derived columns are formatted with the
// shortest representation that parses back to the same float.
func (r EnrichedRecord) Value(column string) string {
	switch column {
	case ColSpeed:
		return formatFloat(r.Speed)
	case ColTravelDistance:
		return formatFloat(r.TravelDistance)
	case ColInfo:
		return r.Info
	default:
		return r.Fields[column]
	}
}

// EnrichedTable is the chronologically ordered enrichment output.
type EnrichedTable struct {
	// Columns is the input header in file order.
	Columns     []string
	Records     []EnrichedRecord
	GeneratedAt time.Time
}

// Header returns the export header: input columns followed by Speed,
// Travel Distance and Info.
func (t *EnrichedTable) Header() []string {
	header := make([]string, 0, len(t.Columns)+3)
	for _, c := range t.Columns {
		switch c {
		case ColSpeed, ColTravelDistance, ColInfo:
			// Re-uploaded exports already carry derived columns; they are
			// recomputed rather than duplicated.
			continue
		}
		header = append(header, c)
	}
	return append(header, ColSpeed, ColTravelDistance, ColInfo)
}

// Len returns the number of enriched records.
func (t *EnrichedTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
