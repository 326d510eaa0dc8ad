package http

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
	"github.com/couchcryptid/ais-ship-tracker/internal/mapview"
	"github.com/couchcryptid/ais-ship-tracker/internal/pipeline"
	"github.com/couchcryptid/ais-ship-tracker/internal/session"
	"maragu.dev/gomponents"
)

const (
	sessionCookie = "shiptracker_session"

	// multipartOverhead allows for form boundaries and headers on top of
	// the file itself.
	multipartOverhead = 1 << 20
)

// ErrNoUpload is reported by data endpoints when the session has no CSV.
var ErrNoUpload = errors.New("upload a CSV file first")

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w, r)
	view := s.buildIndexView(r, sess)
	if n := r.URL.Query().Get("published"); n != "" {
		view.Notice = "Published " + n + " records."
	}
	renderHTML(w, http.StatusOK, indexPage(view))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w, r)

	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		status := http.StatusBadRequest
		msg := "Choose a CSV file to upload."
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			msg = fmt.Sprintf("The file is larger than the %d byte limit.", s.opts.MaxUploadBytes)
		}
		s.metrics.UploadFailures.Inc()
		s.renderIndexError(w, r, sess, status, msg)
		return
	}
	defer file.Close()

	upload, err := s.tracker.Load(r.Context(), file, header.Filename)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, pipeline.ErrUploadTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.renderIndexError(w, r, sess, status, "Could not read "+header.Filename+": "+err.Error())
		return
	}

	sess.Upload = upload
	sess.MinLength = 0
	sess.Selection = nil
	s.sessions.Put(sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w, r)
	if !sess.HasUpload() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderIndexError(w, r, sess, http.StatusBadRequest, "Could not read the form.")
		return
	}

	minLength, err := parseMinLength(r.PostForm.Get("min_length"))
	if err != nil {
		s.renderIndexError(w, r, sess, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sess.MinLength = minLength
	sess.Selection = r.PostForm["vessel"]
	s.sessions.Put(sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.existingSession(r)
	if !ok || !sess.HasUpload() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	res, err := s.tracker.Run(r.Context(), sess.Upload, sess.Params())
	if err != nil {
		if errors.Is(err, domain.ErrNoSelection) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.renderIndexError(w, r, sess, statusFor(err), err.Error())
		return
	}
	renderHTML(w, http.StatusOK, mapPage(mapView{
		Title:           mapview.Title,
		Points:          res.Table.Len(),
		Vessels:         len(res.Summaries),
		DataURL:         "/map.geojson",
		TileURL:         s.opts.TileURL,
		TileAttribution: s.opts.TileAttribution,
	}))
}

func (s *Server) handleMapData(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolveResult(w, r)
	if !ok {
		return
	}
	data, err := mapview.Build(res.Table, s.opts.MapZoom).JSON()
	if err != nil {
		s.logger.Error("map figure failed", "error", err)
		http.Error(w, "could not build map", http.StatusInternalServerError)
		return
	}
	s.metrics.MapRenders.Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolveResult(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", domain.ExportContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", domain.ExportFileName))
	if err := domain.WriteCSV(w, res.Table); err != nil {
		// Headers are already sent; the client sees a truncated file.
		s.logger.Error("csv export failed", "error", err)
		return
	}
	s.metrics.Exports.Inc()
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if !s.tracker.PublishEnabled() {
		http.Error(w, pipeline.ErrPublishDisabled.Error(), http.StatusNotFound)
		return
	}
	res, ok := s.resolveResult(w, r)
	if !ok {
		return
	}
	if err := s.tracker.Publish(r.Context(), res); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, "/?published="+url.QueryEscape(strconv.Itoa(res.Table.Len())), http.StatusSeeOther)
}

// resolveResult runs the pipeline for the caller's session, writing an
// error response when there is nothing to serve.
func (s *Server) resolveResult(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	sess, ok := s.existingSession(r)
	if !ok || !sess.HasUpload() {
		http.Error(w, ErrNoUpload.Error(), http.StatusConflict)
		return nil, false
	}
	res, err := s.tracker.Run(r.Context(), sess.Upload, sess.Params())
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("pipeline run failed", "error", err)
		}
		http.Error(w, err.Error(), status)
		return nil, false
	}
	return res, true
}

func (s *Server) buildIndexView(r *http.Request, sess session.Session) indexView {
	view := indexView{
		Session:        sess,
		PreviewRows:    s.opts.PreviewRows,
		PublishEnabled: s.tracker.PublishEnabled(),
	}
	if !sess.HasUpload() {
		return view
	}

	view.Candidates = s.tracker.Candidates(sess.Upload, sess.MinLength)
	res, err := s.tracker.Run(r.Context(), sess.Upload, sess.Params())
	switch {
	case errors.Is(err, domain.ErrNoSelection):
		view.Prompt = "Choose at least 1 ship to start"
	case err != nil:
		view.Error = err.Error()
	default:
		view.Result = res
	}
	return view
}

func (s *Server) renderIndexError(w http.ResponseWriter, r *http.Request, sess session.Session, status int, msg string) {
	view := s.buildIndexView(r, sess)
	view.Error = msg
	renderHTML(w, status, indexPage(view))
}

// currentSession returns the caller's session, creating one and setting
// the cookie when it is missing or expired.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) session.Session {
	if sess, ok := s.existingSession(r); ok {
		return sess
	}
	sess := s.sessions.New()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	return sess
}

func (s *Server) existingSession(r *http.Request) (session.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return session.Session{}, false
	}
	return s.sessions.Get(c.Value)
}

// parseMinLength reads the length threshold. Empty means no threshold.
func parseMinLength(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("minimum length must be a non-negative number, got %q", raw)
	}
	return v, nil
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var fieldErr *domain.FieldError
	switch {
	case errors.Is(err, domain.ErrNoSelection):
		return http.StatusConflict
	case errors.As(err, &fieldErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}
