package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/ais-ship-tracker/internal/mapview"
	"github.com/couchcryptid/ais-ship-tracker/internal/observability"
	"github.com/couchcryptid/ais-ship-tracker/internal/pipeline"
	"github.com/couchcryptid/ais-ship-tracker/internal/session"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tracker is the pipeline surface the handlers drive.
type Tracker interface {
	Load(ctx context.Context, r io.Reader, name string) (*pipeline.Upload, error)
	Candidates(u *pipeline.Upload, minLength float64) []string
	Run(ctx context.Context, u *pipeline.Upload, params pipeline.Params) (*pipeline.Result, error)
	Publish(ctx context.Context, res *pipeline.Result) error
	PublishEnabled() bool
	CheckReadiness(ctx context.Context) error
}

// Options configure the HTTP server.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	PreviewRows    int
	MapZoom        int
	// TileURL and TileAttribution configure the map's tile layer.
	TileURL         string
	TileAttribution string
}

const (
	defaultTileURL         = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	defaultTileAttribution = "&copy; OpenStreetMap contributors"
)

// Server serves the ship tracker UI plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	tracker    Tracker
	sessions   *session.Store
	opts       Options
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates the HTTP server and its routes.
func NewServer(opts Options, tracker Tracker, sessions *session.Store, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if opts.TileURL == "" {
		opts.TileURL = defaultTileURL
		opts.TileAttribution = defaultTileAttribution
	}
	if opts.MapZoom <= 0 {
		opts.MapZoom = mapview.DefaultZoom
	}

	s := &Server{
		tracker:  tracker,
		sessions: sessions,
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(tracker))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", s.handleIndex)
	r.Post("/upload", s.handleUpload)
	r.Post("/filter", s.handleFilter)
	r.Get("/map", s.handleMap)
	r.Get("/map.geojson", s.handleMapData)
	r.Get("/download", s.handleDownload)
	r.Post("/publish", s.handlePublish)

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// requestLogger logs one line per request. Probe and scrape traffic is
// logged at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
