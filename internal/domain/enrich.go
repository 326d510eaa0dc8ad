package domain

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// KnotsToMetersPerSecond converts speed over ground to m/s.
	KnotsToMetersPerSecond = 0.51444

	// DefaultInfoBaseURL prefixes the IMO number in the Info column.
	DefaultInfoBaseURL = "https://www.vesselfinder.com/vessels/details/"

	// TimestampLayout is the BaseDateTime format written to the export.
	TimestampLayout = "01/02/2006 15:04:05"

	imoPrefix = "IMO"

	// geoPointProperty is never copied into GeoPoint properties.
	geoPointProperty = "geopoint"
)

// timestampLayouts are tried in order when parsing BaseDateTime.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	TimestampLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

var errMissingValue = errors.New("value is missing")

// FieldError reports a cell that could not be interpreted.
type FieldError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("row %d: invalid %s %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Enricher derives the computed columns for matched broadcasts.
type Enricher struct {
	infoBaseURL string
}

// NewEnricher creates an Enricher. An empty base URL selects DefaultInfoBaseURL.
func NewEnricher(infoBaseURL string) *Enricher {
	if infoBaseURL == "" {
		infoBaseURL = DefaultInfoBaseURL
	}
	return &Enricher{infoBaseURL: infoBaseURL}
}

// Enrich maps each matched broadcast to an EnrichedRecord, orders the
// records by time and fills in the travel distance from the previous
// record. The first record's distance is 0.
//
// Any unparseable timestamp, coordinate or speed fails the whole run.
func (e *Enricher) Enrich(matched []Broadcast, columns []string) (*EnrichedTable, error) {
	records := make([]EnrichedRecord, len(matched))
	for i, b := range matched {
		rec, err := e.enrichRecord(b)
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}

	slices.SortStableFunc(records, func(a, b EnrichedRecord) int {
		return a.Time.Compare(b.Time)
	})

	points := make([]GeoPoint, len(records))
	for i := range records {
		points[i] = records[i].GeoPoint
	}
	track, err := NewTrack(points)
	if err != nil {
		return nil, fmt.Errorf("build track: %w", err)
	}
	for i, d := range track.CentroidDistances() {
		records[i+1].TravelDistance = d
	}

	return &EnrichedTable{
		Columns:     slices.Clone(columns),
		Records:     records,
		GeneratedAt: clock.Now(),
	}, nil
}

// enrichRecord normalizes one broadcast. The GeoPoint properties reflect
// the record after timestamp, name and speed normalization but before the
// IMO prefix is stripped.
func (e *Enricher) enrichRecord(b Broadcast) (EnrichedRecord, error) {
	ts, err := parseTimestamp(b.BaseDateTime())
	if err != nil {
		return EnrichedRecord{}, &FieldError{Row: b.Row, Column: ColBaseDateTime, Value: b.BaseDateTime(), Err: err}
	}
	lat, err := parseRequiredFloat(b, ColLat)
	if err != nil {
		return EnrichedRecord{}, err
	}
	lon, err := parseRequiredFloat(b, ColLon)
	if err != nil {
		return EnrichedRecord{}, err
	}
	sog, err := parseRequiredFloat(b, ColSOG)
	if err != nil {
		return EnrichedRecord{}, err
	}

	fields := maps.Clone(b.Fields)
	fields[ColBaseDateTime] = ts.Format(TimestampLayout)
	fields[ColVesselName] = strings.ToLower(b.VesselName())
	speed := sog * KnotsToMetersPerSecond

	properties := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		if k == geoPointProperty {
			continue
		}
		properties[k] = v
	}
	properties[ColSpeed] = formatFloat(speed)

	imo := strings.TrimPrefix(b.IMO(), imoPrefix)
	fields[ColIMO] = imo

	return EnrichedRecord{
		Row:          b.Row,
		VesselName:   fields[ColVesselName],
		IMO:          imo,
		MMSI:         b.MMSI(),
		BaseDateTime: fields[ColBaseDateTime],
		Time:         ts,
		Lat:          lat,
		Lon:          lon,
		SOG:          sog,
		Speed:        speed,
		Info:         e.infoBaseURL + imo,
		Fields:       fields,
		GeoPoint: GeoPoint{
			Lat:        lat,
			Lon:        lon,
			Time:       ts,
			Properties: properties,
		},
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errMissingValue
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("expected a timestamp like %q", "2006-01-02T15:04:05")
}

func parseRequiredFloat(b Broadcast, column string) (float64, error) {
	raw := b.Fields[column]
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &FieldError{Row: b.Row, Column: column, Value: raw, Err: errMissingValue}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &FieldError{Row: b.Row, Column: column, Value: raw, Err: errors.New("not a number")}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FieldError{Row: b.Row, Column: column, Value: raw, Err: errors.New("not a finite number")}
	}
	return v, nil
}
