// Command validate checks an exported ship_info.csv against the CSV it was
// produced from. It verifies the export schema, that every exported row
// traces back to a source row, the derived Speed and Info columns, and the
// ordering and distances of the track.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -source data/mock/ais_sample.csv \
//	  -export ~/Downloads/ship_info.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
)

const (
	speedTolerance    = 1e-6
	distanceTolerance = 0.01 // meters
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	sourcePath := flag.String("source", "", "path to the uploaded AIS CSV")
	exportPath := flag.String("export", "", "path to the exported ship_info.csv")
	infoBase := flag.String("info-base", domain.DefaultInfoBaseURL, "expected Info URL prefix")
	flag.Parse()

	if *sourcePath == "" || *exportPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*sourcePath, *exportPath, *infoBase); code != 0 {
		os.Exit(code)
	}
}

func run(sourcePath, exportPath, infoBase string) int {
	fmt.Println("=== Ship Export Validation ===")
	fmt.Println()

	source, err := loadSource(sourcePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load source CSV: %v\n", err)
		return 1
	}

	export, err := loadExport(exportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load export CSV: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateSchema(export.header, source.Columns),
		validateProvenance(export.rows, source),
		validateDerivedColumns(export.rows, infoBase),
		validateTrack(export.rows),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d source CSV, %d exported\n", source.Len(), len(export.rows))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

type exportFile struct {
	header []string
	rows   []csvRow
}

func loadSource(path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return domain.ParseCSV(f)
}

func loadExport(path string) (*exportFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	out := &exportFile{header: header}
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = row[j]
			}
		}
		out.rows = append(out.rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return out, nil
}

// ── Phase 1: Schema ──
// The export keeps the source columns in order and appends the derived ones.

func validateSchema(header, sourceColumns []string) *phase {
	p := &phase{name: "Phase 1: Export Schema"}

	derived := []string{domain.ColSpeed, domain.ColTravelDistance, domain.ColInfo}
	var want []string
	for _, c := range sourceColumns {
		if !slices.Contains(derived, c) {
			want = append(want, c)
		}
	}
	want = append(want, derived...)

	if !slices.Equal(header, want) {
		p.errorf("header mismatch:\n      got  %v\n      want %v", header, want)
	}
	return p
}

// ── Phase 2: Provenance ──
// Every exported row must come from a distinct source row.

func validateProvenance(rows []csvRow, source *domain.Table) *phase {
	p := &phase{name: "Phase 2: Provenance (export vs source)"}

	if len(rows) > source.Len() {
		p.errorf("export has %d rows, source only %d", len(rows), source.Len())
	}

	index := map[string]int{}
	for _, b := range source.Rows {
		index[provenanceKey(b.MMSI(), b.Fields[domain.ColLat], b.Fields[domain.ColLon], b.Fields[domain.ColSOG])]++
	}
	for _, r := range rows {
		key := provenanceKey(r.fields[domain.ColMMSI], r.fields[domain.ColLat], r.fields[domain.ColLon], r.fields[domain.ColSOG])
		if index[key] == 0 {
			p.errorf("line %d: no matching source row (key=%s)", r.lineNum, key)
			continue
		}
		index[key]--
	}
	return p
}

func provenanceKey(mmsi, lat, lon, sog string) string {
	return strings.Join([]string{mmsi, lat, lon, sog}, "|")
}

// ── Phase 3: Derived columns ──

func validateDerivedColumns(rows []csvRow, infoBase string) *phase {
	p := &phase{name: "Phase 3: Derived Columns"}

	for _, r := range rows {
		checkSpeed(p, r)

		imo := r.fields[domain.ColIMO]
		if strings.HasPrefix(imo, "IMO") {
			p.errorf("line %d: IMO %q still carries its prefix", r.lineNum, imo)
		}
		if want := infoBase + imo; r.fields[domain.ColInfo] != want {
			p.errorf("line %d: Info=%q, want %q", r.lineNum, r.fields[domain.ColInfo], want)
		}

		name := r.fields[domain.ColVesselName]
		if name != strings.ToLower(name) {
			p.errorf("line %d: VesselName %q is not lowercase", r.lineNum, name)
		}
		if _, err := time.Parse(domain.TimestampLayout, r.fields[domain.ColBaseDateTime]); err != nil {
			p.errorf("line %d: BaseDateTime %q not in %s layout", r.lineNum, r.fields[domain.ColBaseDateTime], domain.TimestampLayout)
		}
	}
	return p
}

func checkSpeed(p *phase, r csvRow) {
	sog, err := strconv.ParseFloat(r.fields[domain.ColSOG], 64)
	if err != nil {
		p.errorf("line %d: SOG %q: %v", r.lineNum, r.fields[domain.ColSOG], err)
		return
	}
	speed, err := strconv.ParseFloat(r.fields[domain.ColSpeed], 64)
	if err != nil {
		p.errorf("line %d: Speed %q: %v", r.lineNum, r.fields[domain.ColSpeed], err)
		return
	}
	if want := sog * domain.KnotsToMetersPerSecond; math.Abs(speed-want) > speedTolerance {
		p.errorf("line %d: Speed=%g, want SOG*%g=%g", r.lineNum, speed, domain.KnotsToMetersPerSecond, want)
	}
}

// ── Phase 4: Track ──
// Rows are chronological, the first distance is 0 and each later distance
// is the great-circle leg from the previous row.

func validateTrack(rows []csvRow) *phase {
	p := &phase{name: "Phase 4: Track Order and Distances"}

	var prev *domain.GeoPoint
	for i, r := range rows {
		pt, err := rowPoint(r)
		if err != nil {
			p.errorf("line %d: %v", r.lineNum, err)
			prev = nil
			continue
		}
		dist, err := strconv.ParseFloat(r.fields[domain.ColTravelDistance], 64)
		if err != nil {
			p.errorf("line %d: Travel Distance %q: %v", r.lineNum, r.fields[domain.ColTravelDistance], err)
			prev = &pt
			continue
		}

		switch {
		case i == 0:
			if dist != 0 {
				p.errorf("line %d: first Travel Distance is %g, want 0", r.lineNum, dist)
			}
		case prev != nil:
			if pt.Time.Before(prev.Time) {
				p.errorf("line %d: %s precedes previous row", r.lineNum, r.fields[domain.ColBaseDateTime])
			}
			if want := domain.Distance(*prev, pt); math.Abs(dist-want) > distanceTolerance {
				p.errorf("line %d: Travel Distance=%g, want %g", r.lineNum, dist, want)
			}
		}
		if dist < 0 {
			p.errorf("line %d: negative Travel Distance %g", r.lineNum, dist)
		}
		prev = &pt
	}
	return p
}

func rowPoint(r csvRow) (domain.GeoPoint, error) {
	ts, err := time.Parse(domain.TimestampLayout, r.fields[domain.ColBaseDateTime])
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("BaseDateTime: %w", err)
	}
	lat, err := strconv.ParseFloat(r.fields[domain.ColLat], 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("LAT: %w", err)
	}
	lon, err := strconv.ParseFloat(r.fields[domain.ColLon], 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("LON: %w", err)
	}
	return domain.GeoPoint{Lat: lat, Lon: lon, Time: ts}, nil
}
