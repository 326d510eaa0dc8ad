package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
	"github.com/couchcryptid/ais-ship-tracker/internal/lru"
	"github.com/couchcryptid/ais-ship-tracker/internal/observability"
)

var (
	// ErrUploadTooLarge is returned when an upload exceeds the configured size limit.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")

	// ErrPublishDisabled is returned by Publish when no loader is configured.
	ErrPublishDisabled = errors.New("publishing is not enabled")
)

// BatchLoader writes an enriched table to an external sink.
type BatchLoader interface {
	LoadBatch(ctx context.Context, table *domain.EnrichedTable) error
}

// Upload is a parsed CSV file identified by the hash of its bytes.
type Upload struct {
	Hash  uint64
	Name  string
	Size  int64
	Table *domain.Table
}

// Rows returns the number of data rows in the upload.
func (u *Upload) Rows() int {
	if u == nil {
		return 0
	}
	return u.Table.Len()
}

// Params are the user inputs that drive a run.
type Params struct {
	MinLength float64
	Selection []string
}

// Result is the output of one filter and enrichment run. Results are shared
// through the memo cache and must be treated as read-only.
type Result struct {
	Candidates []string
	// Selection is the requested selection restricted to Candidates, sorted.
	Selection []string
	Table     *domain.EnrichedTable
	Summaries []domain.VesselSummary
}

// resultKey identifies a memoized run.
type resultKey struct {
	hash      uint64
	minLength float64
	selection string
}

// Options configure a Pipeline.
type Options struct {
	InfoBaseURL    string
	CacheSize      int
	MaxUploadBytes int64
	// Geocoder labels each vessel's last position; nil disables it.
	Geocoder domain.Geocoder
	// Loader receives published results; nil disables publishing.
	Loader BatchLoader
}

// Pipeline runs the load, filter, enrich and summarize steps with
// memoization keyed by (upload hash, parameters).
type Pipeline struct {
	enricher       *domain.Enricher
	geocoder       domain.Geocoder
	loader         BatchLoader
	maxUploadBytes int64

	uploads *lru.Cache[uint64, *domain.Table]
	results *lru.Cache[resultKey, *Result]

	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline.
func New(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		enricher:       domain.NewEnricher(opts.InfoBaseURL),
		geocoder:       opts.Geocoder,
		loader:         opts.Loader,
		maxUploadBytes: opts.MaxUploadBytes,
		uploads:        lru.New[uint64, *domain.Table](opts.CacheSize),
		results:        lru.New[resultKey, *Result](opts.CacheSize),
		logger:         logger,
		metrics:        metrics,
	}
}

// Load reads and parses an uploaded CSV. Identical bytes reuse the parsed
// table from the upload cache.
func (p *Pipeline) Load(_ context.Context, r io.Reader, name string) (*Upload, error) {
	data, err := p.readUpload(r)
	if err != nil {
		p.metrics.UploadFailures.Inc()
		return nil, err
	}

	hash := xxhash.Sum64(data)
	upload := &Upload{Hash: hash, Name: name, Size: int64(len(data))}

	if table, ok := p.uploads.Get(hash); ok {
		p.metrics.PipelineCache.WithLabelValues("upload", "hit").Inc()
		upload.Table = table
	} else {
		p.metrics.PipelineCache.WithLabelValues("upload", "miss").Inc()
		table, err := domain.ParseCSV(bytes.NewReader(data))
		if err != nil {
			p.metrics.UploadFailures.Inc()
			p.logger.Warn("upload rejected", "file", name, "bytes", len(data), "error", err)
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		p.uploads.Put(hash, table)
		upload.Table = table
	}

	p.metrics.UploadsTotal.Inc()
	p.metrics.RowsLoaded.Observe(float64(upload.Rows()))
	p.logger.Info("upload accepted",
		"file", name,
		"bytes", upload.Size,
		"rows", upload.Rows(),
		"hash", strconv.FormatUint(hash, 16),
	)
	return upload, nil
}

func (p *Pipeline) readUpload(r io.Reader) ([]byte, error) {
	if p.maxUploadBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, p.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > p.maxUploadBytes {
		return nil, fmt.Errorf("%w of %d bytes", ErrUploadTooLarge, p.maxUploadBytes)
	}
	return data, nil
}

// Candidates returns the vessel names offered for selection at the given
// length threshold.
func (p *Pipeline) Candidates(u *Upload, minLength float64) []string {
	return domain.CandidateNames(u.Table, minLength)
}

// Run filters the upload by params, enriches the matched rows and builds
// the vessel summaries. Selected names that are not candidates at the
// current threshold are dropped; if none remain it returns
// domain.ErrNoSelection.
func (p *Pipeline) Run(ctx context.Context, u *Upload, params Params) (*Result, error) {
	candidates := p.Candidates(u, params.MinLength)
	selection := restrictSelection(params.Selection, candidates)
	if len(selection) == 0 {
		p.metrics.PipelineRuns.WithLabelValues("no_selection").Inc()
		return nil, domain.ErrNoSelection
	}

	key := resultKey{hash: u.Hash, minLength: params.MinLength, selection: strings.Join(selection, "\x1f")}
	if res, ok := p.results.Get(key); ok {
		p.metrics.PipelineCache.WithLabelValues("result", "hit").Inc()
		return res, nil
	}
	p.metrics.PipelineCache.WithLabelValues("result", "miss").Inc()

	start := time.Now()
	matched, err := domain.MatchIdentities(u.Table, selection)
	if err != nil {
		p.metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("match identities: %w", err)
	}

	enriched, err := p.enricher.Enrich(matched, u.Table.Columns)
	if err != nil {
		p.metrics.PipelineRuns.WithLabelValues("error").Inc()
		var fieldErr *domain.FieldError
		if errors.As(err, &fieldErr) {
			p.metrics.EnrichmentErrors.Inc()
		}
		p.logger.Warn("enrichment failed", "file", u.Name, "selection", selection, "error", err)
		return nil, fmt.Errorf("enrich: %w", err)
	}

	summaries := domain.SummarizeVessels(enriched)
	summaries = domain.EnrichWithGeocoding(ctx, summaries, p.geocoder, p.logger)

	res := &Result{
		Candidates: candidates,
		Selection:  selection,
		Table:      enriched,
		Summaries:  summaries,
	}
	p.results.Put(key, res)

	p.metrics.PipelineRuns.WithLabelValues("success").Inc()
	p.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("pipeline run complete",
		"file", u.Name,
		"min_length", params.MinLength,
		"vessels", len(selection),
		"matched", len(matched),
		"duration", time.Since(start),
	)
	return res, nil
}

// PublishEnabled reports whether a publish sink is configured.
func (p *Pipeline) PublishEnabled() bool {
	return p.loader != nil
}

// Publish sends the enriched table of res to the configured sink.
func (p *Pipeline) Publish(ctx context.Context, res *Result) error {
	if p.loader == nil {
		return ErrPublishDisabled
	}
	if err := p.loader.LoadBatch(ctx, res.Table); err != nil {
		p.metrics.PublishFailures.Inc()
		p.logger.Error("publish failed", "records", res.Table.Len(), "error", err)
		return fmt.Errorf("publish: %w", err)
	}
	p.metrics.RecordsPublished.Add(float64(res.Table.Len()))
	p.logger.Info("published enriched table", "records", res.Table.Len())
	return nil
}

// CheckReadiness delegates to the publish sink when it can report
// readiness; without a sink the pipeline is always ready.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	checker, ok := p.loader.(interface {
		CheckReadiness(ctx context.Context) error
	})
	if !ok {
		return nil
	}
	if err := checker.CheckReadiness(ctx); err != nil {
		return fmt.Errorf("publish sink: %w", err)
	}
	return nil
}

// restrictSelection returns the distinct selected names present in
// candidates, sorted.
func restrictSelection(selected, candidates []string) []string {
	out := make([]string, 0, len(selected))
	for _, name := range selected {
		if _, found := slices.BinarySearch(candidates, name); found && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
