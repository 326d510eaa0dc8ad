package http_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/ais-ship-tracker/internal/adapter/http"
	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
	"github.com/couchcryptid/ais-ship-tracker/internal/mapview"
	"github.com/couchcryptid/ais-ship-tracker/internal/observability"
	"github.com/couchcryptid/ais-ship-tracker/internal/pipeline"
	"github.com/couchcryptid/ais-ship-tracker/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shipsCSV = "MMSI,BaseDateTime,LAT,LON,SOG,VesselName,IMO,Length\n" +
	"111,2020-01-01T00:00:00,29.30,-94.80,10,ALPHA,IMO123,150\n" +
	"222,2020-01-01T00:05:00,29.40,-94.90,4,BRAVO,IMO456,20\n" +
	"111,2020-01-01T00:10:00,29.31,-94.79,12,ALPHA,IMO123,150\n"

type mockLoader struct {
	published int
	err       error
	readyErr  error
}

func (m *mockLoader) LoadBatch(_ context.Context, table *domain.EnrichedTable) error {
	if m.err != nil {
		return m.err
	}
	m.published += table.Len()
	return nil
}

func (m *mockLoader) CheckReadiness(_ context.Context) error { return m.readyErr }

type testEnv struct {
	srv     *httpadapter.Server
	metrics *observability.Metrics
	cookie  *http.Cookie
}

func newTestEnv(t *testing.T, loader pipeline.BatchLoader) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	opts := pipeline.Options{CacheSize: 8, MaxUploadBytes: 4096}
	if loader != nil {
		opts.Loader = loader
	}
	p := pipeline.New(opts, logger, metrics)
	store := session.NewStore(time.Hour, clockwork.NewFakeClock())

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:           ":0",
		MaxUploadBytes: 4096,
		PreviewRows:    2,
	}, p, store, metrics, logger)
	return &testEnv{srv: srv, metrics: metrics}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "shiptracker_session" {
			e.cookie = c
		}
	}
	return rec
}

func (e *testEnv) upload(t *testing.T, name, data string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(fw, data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func (e *testEnv) filter(minLength string, vessels ...string) *httptest.ResponseRecorder {
	form := url.Values{"min_length": {minLength}, "vessel": vessels}
	req := httptest.NewRequest(http.MethodPost, "/filter", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func TestHealthzReturns200(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WithoutPublishSink(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenSinkNotReady(t *testing.T) {
	env := newTestEnv(t, &mockLoader{readyErr: fmt.Errorf("broker unreachable")})
	rec := env.get("/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Contains(t, body["error"], "broker unreachable")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestIndex_SetsSessionCookie(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Upload an AIS broadcast CSV")
	require.NotNil(t, env.cookie)
	assert.NotEmpty(t, env.cookie.Value)
}

func TestUploadFilterAndExport(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, "ships.csv", shipsCSV)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = env.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Rows of Data: 3")
	assert.Contains(t, page, "Choose at least 1 ship to start")
	assert.Contains(t, page, `value="BRAVO"`)

	rec = env.filter("100", "ALPHA")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = env.get("/")
	page = rec.Body.String()
	assert.Contains(t, page, "Total data points: 2")
	assert.NotContains(t, page, `value="BRAVO"`, "BRAVO is shorter than the threshold")
	assert.Contains(t, page, domain.DefaultInfoBaseURL+"123")

	rec = env.get("/download")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, `attachment; filename="ship_info.csv"`, rec.Header().Get("Content-Disposition"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	header := rows[0]
	assert.Equal(t, []string{domain.ColSpeed, domain.ColTravelDistance, domain.ColInfo}, header[len(header)-3:])
	assert.Equal(t, "alpha", rows[1][5])
	assert.Equal(t, "0", rows[1][len(header)-2])
	assert.Equal(t, 1.0, counterValue(t, env.metrics.Exports))
}

func TestMapData(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upload(t, "ships.csv", shipsCSV)
	env.filter("", "ALPHA", "BRAVO")

	rec := env.get("/map")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-src="/map.geojson"`)
	assert.Contains(t, rec.Body.String(), mapview.Title)

	rec = env.get("/map.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var fig struct {
		Title    string `json:"title"`
		Zoom     int    `json:"zoom"`
		Legend   []mapview.LegendEntry
		Features struct {
			Features []json.RawMessage `json:"features"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fig))
	assert.Equal(t, mapview.Title, fig.Title)
	assert.Equal(t, mapview.DefaultZoom, fig.Zoom)
	assert.Len(t, fig.Features.Features, 3)
	assert.Len(t, fig.Legend, 2)
	assert.Equal(t, 1.0, counterValue(t, env.metrics.MapRenders))
}

func TestMap_RedirectsWithoutSelection(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/map")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	env.upload(t, "ships.csv", shipsCSV)
	rec = env.get("/map")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestDataEndpoints_Conflict(t *testing.T) {
	for _, path := range []string{"/download", "/map.geojson"} {
		t.Run(path, func(t *testing.T) {
			env := newTestEnv(t, nil)
			assert.Equal(t, http.StatusConflict, env.get(path).Code, "no session")

			env.upload(t, "ships.csv", shipsCSV)
			assert.Equal(t, http.StatusConflict, env.get(path).Code, "no selection")

			// The selection falls away once the threshold excludes it.
			env.filter("500", "ALPHA")
			assert.Equal(t, http.StatusConflict, env.get(path).Code, "selection filtered out")
		})
	}
}

func TestDownload_MalformedRow(t *testing.T) {
	env := newTestEnv(t, nil)
	data := "MMSI,BaseDateTime,LAT,LON,SOG,VesselName,IMO,Length\n" +
		"111,2020-01-01T00:00:00,29.30,-94.80,fast,ALPHA,IMO123,150\n"
	env.upload(t, "bad.csv", data)
	env.filter("", "ALPHA")

	rec := env.get("/download")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "row 1")
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		status int
	}{
		{"missing columns", "MMSI,LAT\n1,2\n", http.StatusUnprocessableEntity},
		{"header only", "MMSI,BaseDateTime,LAT,LON,SOG,VesselName,IMO,Length\n", http.StatusUnprocessableEntity},
		{"too large", shipsCSV + strings.Repeat("111,2020-01-01T00:00:00,1,1,1,A,IMO1,1\n", 200), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.upload(t, "in.csv", tt.data)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `class="error"`)
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilter_InvalidMinLength(t *testing.T) {
	for _, value := range []string{"-1", "abc", "NaN"} {
		t.Run(value, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.upload(t, "ships.csv", shipsCSV)
			rec := env.filter(value, "ALPHA")
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), "minimum length")
		})
	}
}

func TestPublish(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(httptest.NewRequest(http.MethodPost, "/publish", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("publishes selection", func(t *testing.T) {
		loader := &mockLoader{}
		env := newTestEnv(t, loader)
		env.upload(t, "ships.csv", shipsCSV)
		env.filter("", "ALPHA")

		rec := env.do(httptest.NewRequest(http.MethodPost, "/publish", nil))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/?published=2", rec.Header().Get("Location"))
		assert.Equal(t, 2, loader.published)

		rec = env.get("/?published=2")
		assert.Contains(t, rec.Body.String(), "Published 2 records.")
	})

	t.Run("sink failure", func(t *testing.T) {
		env := newTestEnv(t, &mockLoader{err: fmt.Errorf("broker down")})
		env.upload(t, "ships.csv", shipsCSV)
		env.filter("", "ALPHA")

		rec := env.do(httptest.NewRequest(http.MethodPost, "/publish", nil))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
