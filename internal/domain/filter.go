package domain

import (
	"errors"
	"slices"
)

// ErrNoSelection is returned when no vessel has been selected. It is a
// prompt for the user rather than a failure.
var ErrNoSelection = errors.New("choose at least 1 ship to start")

// CandidateNames returns the distinct vessel names among rows longer than
// minLength, sorted. A minLength of 0 means "no length filter": every named
// vessel is a candidate, including those with unreported length.
func CandidateNames(t *Table, minLength float64) []string {
	seen := make(map[string]struct{})
	for _, b := range t.Rows {
		if minLength != 0 && (b.Length == nil || !(*b.Length > minLength)) {
			continue
		}
		if name := b.VesselName(); name != "" {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// MatchIdentities returns every row of t that shares an identity with the
// selected vessels, in table order. A row matches when its IMO or MMSI
// equals that of any row named in selected, or when its own name is
// selected. The three keys are OR-combined.
//
// Matching runs over the whole table, not the length-filtered candidates:
// a short row sharing an MMSI with a selected vessel is included.
func MatchIdentities(t *Table, selected []string) ([]Broadcast, error) {
	if len(selected) == 0 {
		return nil, ErrNoSelection
	}

	names := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		names[s] = struct{}{}
	}

	imos := make(map[string]struct{})
	mmsis := make(map[string]struct{})
	for _, b := range t.Rows {
		if _, ok := names[b.VesselName()]; !ok {
			continue
		}
		if imo := b.IMO(); imo != "" {
			imos[imo] = struct{}{}
		}
		if mmsi := b.MMSI(); mmsi != "" {
			mmsis[mmsi] = struct{}{}
		}
	}

	var matched []Broadcast
	for _, b := range t.Rows {
		_, byIMO := imos[b.IMO()]
		_, byMMSI := mmsis[b.MMSI()]
		_, byName := names[b.VesselName()]
		if byIMO || byMMSI || byName {
			matched = append(matched, b)
		}
	}
	return matched, nil
}
