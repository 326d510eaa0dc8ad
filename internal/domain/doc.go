// Package domain models AIS (Automatic Identification System) ship broadcast
// points and the filter-and-derive pipeline run over them.
//
// # Data Source
//
// Broadcast points come from the Marine Cadastre AIS exports, available at
// https://marinecadastre.gov/ais/. Each export is a CSV file with one row per
// position report. The columns the pipeline interprets are:
//
//	BaseDateTime  report time, "2020-01-01T00:00:00" in the raw exports
//	VesselName    free text, upper case in the raw exports
//	IMO           "IMO" followed by the 7-digit IMO number, often empty
//	MMSI          9-digit Maritime Mobile Service Identity
//	Length        vessel length in meters, empty when unreported
//	SOG           speed over ground in knots
//	LAT, LON      WGS-84 degrees
//
// Every other column (COG, Heading, CallSign, VesselType, Status, Width,
// Draft, Cargo, TransceiverClass, ...) passes through unchanged.
//
// # Identity
//
// A vessel can broadcast under more than one identity over a day: the name
// may be misspelled, the IMO may be missing on some reports, and MMSI values
// are occasionally reassigned. Selecting a vessel by name therefore pulls in
// every row that shares its name, its IMO or its MMSI (see [MatchIdentities]).
// Empty IMO and MMSI cells never match each other.
//
// # Derived Columns
//
//	Speed            SOG in meters per second (knots × 0.51444)
//	Travel Distance  great-circle meters from the previous point, in time
//	                 order across the whole selection; 0 for the first point
//	Info             vessel details URL built from the IMO number
//
// Derived values are computed by [Enricher.Enrich]; the output column layout
// is described by [EnrichedTable.Header].
package domain
