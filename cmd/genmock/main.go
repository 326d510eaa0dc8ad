// Command genmock generates a synthetic Marine Cadastre style AIS CSV and
// runs it through the domain package so the printed stats match what the
// tracker will compute for the same file.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/ais_generated.csv \
//	  -vessels 5 -points 24 -seed 42
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
	"github.com/jonboulle/clockwork"
)

var baseDate = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// header is the full Marine Cadastre column set.
var header = []string{
	domain.ColMMSI, domain.ColBaseDateTime, domain.ColLat, domain.ColLon, domain.ColSOG,
	"COG", "Heading", domain.ColVesselName, domain.ColIMO, "CallSign", "VesselType",
	"Status", domain.ColLength, "Width", "Draft", "Cargo", "TransceiverClass",
}

var names = []string{
	"GULF TRADER", "BAY RUNNER", "HARBOR PILOT", "LONE STAR", "SABINE PASS",
	"PELICAN", "TEXAS CITY", "BOLIVAR", "MATAGORDA", "PORT ARTHUR",
}

type vessel struct {
	name    string
	mmsi    string
	imo     string
	length  string
	lat     float64
	lon     float64
	course  float64 // degrees
	speed   float64 // knots
	aliasOf int     // index of the vessel whose MMSI this one reuses, -1 for none
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the generated CSV")
	count := flag.Int("vessels", 4, "number of vessels")
	points := flag.Int("points", 12, "position reports per vessel")
	interval := flag.Duration("interval", 10*time.Minute, "time between reports")
	seed := flag.Uint64("seed", 1, "random seed")
	alias := flag.Bool("alias", true, "add a renamed vessel sharing the first vessel's MMSI")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *count < 1 || *count > len(names) {
		return fmt.Errorf("-vessels must be between 1 and %d", len(names))
	}
	if *points < 1 {
		return fmt.Errorf("-points must be positive")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	fleet := makeFleet(rng, *count, *alias)
	rows := generateRows(rng, fleet, *points, *interval)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := writeFile(*out, buf.Bytes()); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d rows for %d vessels: %s", len(rows), len(fleet), *out)

	// Fixed clock for reproducible GeneratedAt.
	domain.SetClock(clockwork.NewFakeClockAt(baseDate.Add(24 * time.Hour)))
	defer domain.SetClock(nil)

	return printStats(buf.Bytes())
}

func makeFleet(rng *rand.Rand, n int, alias bool) []vessel {
	fleet := make([]vessel, 0, n+1)
	for i := range n {
		v := vessel{
			name:    names[i],
			mmsi:    strconv.Itoa(367000100 + i + 1),
			lat:     28.8 + rng.Float64()*0.8,
			lon:     -95.2 + rng.Float64()*1.0,
			course:  rng.Float64() * 360,
			speed:   2 + rng.Float64()*14,
			aliasOf: -1,
		}
		// Every third vessel reports no IMO or length, like small craft.
		if i%3 != 2 {
			v.imo = fmt.Sprintf("IMO%07d", 9300100+i+1)
			v.length = strconv.Itoa(20 + rng.IntN(280))
		}
		fleet = append(fleet, v)
	}
	if alias {
		a := fleet[0]
		a.name += " II"
		a.imo = ""
		a.length = ""
		a.aliasOf = 0
		fleet = append(fleet, a)
	}
	return fleet
}

func generateRows(rng *rand.Rand, fleet []vessel, points int, interval time.Duration) [][]string {
	rows := make([][]string, 0, len(fleet)*points)
	for i := range fleet {
		v := &fleet[i]
		// Aliases continue the original's track after it.
		start := baseDate
		if v.aliasOf >= 0 {
			start = baseDate.Add(time.Duration(points) * interval)
		}
		lat, lon := v.lat, v.lon
		for p := range points {
			ts := start.Add(time.Duration(p)*interval + time.Duration(rng.IntN(60))*time.Second)
			sog := math.Max(0, v.speed+rng.NormFloat64())
			rows = append(rows, []string{
				v.mmsi,
				ts.Format("2006-01-02T15:04:05"),
				strconv.FormatFloat(lat, 'f', 5, 64),
				strconv.FormatFloat(lon, 'f', 5, 64),
				strconv.FormatFloat(sog, 'f', 1, 64),
				strconv.FormatFloat(v.course, 'f', 1, 64),
				"511",
				v.name,
				v.imo,
				fmt.Sprintf("WDA%04d", 1000+i),
				"70",
				"under way using engine",
				v.length,
				"", "", "",
				"A",
			})
			lat, lon = advance(lat, lon, v.course, sog, interval)
		}
	}
	// Newest first, as Marine Cadastre extracts often are.
	sort.SliceStable(rows, func(a, b int) bool { return rows[a][1] > rows[b][1] })
	return rows
}

// advance moves a position along course at sog knots for d, using a flat
// approximation that is adequate for short legs.
func advance(lat, lon, course, sog float64, d time.Duration) (float64, float64) {
	meters := sog * domain.KnotsToMetersPerSecond * d.Seconds()
	rad := course * math.Pi / 180
	dLat := meters * math.Cos(rad) / 111_320
	dLon := meters * math.Sin(rad) / (111_320 * math.Cos(lat*math.Pi/180))
	return lat + dLat, lon + dLon
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func printStats(data []byte) error {
	table, err := domain.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse generated csv: %w", err)
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d\n", table.Len())
	for _, threshold := range []float64{0, 50, 150} {
		fmt.Printf("Candidates (length > %g): %v\n", threshold, domain.CandidateNames(table, threshold))
	}

	enricher := domain.NewEnricher("")
	for _, name := range domain.CandidateNames(table, 0) {
		matched, err := domain.MatchIdentities(table, []string{name})
		if err != nil {
			return err
		}
		enriched, err := enricher.Enrich(matched, table.Columns)
		if err != nil {
			return fmt.Errorf("enrich %s: %w", name, err)
		}
		var travel float64
		for _, rec := range enriched.Records {
			travel += rec.TravelDistance
		}
		fmt.Printf("  %-16s matched=%-3d travel=%.1fm vessels=%d\n",
			name, len(matched), travel, len(domain.SummarizeVessels(enriched)))
	}
	return nil
}
