// Package server exposes the pipeline over HTTP under /api.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/fingerprint-cli/internal/dataset"
	"github.com/KaramelBytes/fingerprint-cli/internal/logging"
	"github.com/KaramelBytes/fingerprint-cli/internal/metrics"
	"github.com/KaramelBytes/fingerprint-cli/internal/pipeline"
	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
	"github.com/KaramelBytes/fingerprint-cli/internal/stats"
)

// Lister enumerates the available datasets.
type Lister interface {
	List() ([]dataset.Entry, error)
}

// Options configures a Server. Pipeline and Lister are required.
type Options struct {
	Pipeline      *pipeline.Pipeline
	Lister        Lister
	DefaultMethod string
	// DefaultRadius is used as-is when a request omits radius; zero and
	// negative values yield all-zero rankings.
	DefaultRadius float64
	CORSOrigins   []string
	// RateLimit of 0 disables limiting.
	RateLimit float64
	Burst     int
	Logger    *slog.Logger
	Observer  metrics.Observer
	Gatherer  prometheus.Gatherer
}

type Server struct {
	pipeline      *pipeline.Pipeline
	lister        Lister
	defaultMethod string
	defaultRadius float64
	origins       map[string]bool
	limiter       *rate.Limiter
	log           *slog.Logger
	obs           metrics.Observer
	gatherer      prometheus.Gatherer
}

func New(opt Options) *Server {
	s := &Server{
		pipeline:      opt.Pipeline,
		lister:        opt.Lister,
		defaultMethod: opt.DefaultMethod,
		defaultRadius: opt.DefaultRadius,
		origins:       map[string]bool{},
		log:           opt.Logger,
		obs:           opt.Observer,
		gatherer:      opt.Gatherer,
	}
	if s.defaultMethod == "" {
		s.defaultMethod = "pca"
	}
	for _, o := range opt.CORSOrigins {
		s.origins[o] = true
	}
	if opt.RateLimit > 0 {
		burst := opt.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opt.RateLimit), burst)
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.obs == nil {
		s.obs = metrics.Noop{}
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	return s
}

// Handler returns the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, h)
		mux.HandleFunc(pattern+"/{$}", h)
	}
	route("GET /api/datasets", s.handleDatasets)
	route("GET /api/data/{identifier}", s.handleData)
	route("GET /api/projection", s.handleProjection)
	route("GET /api/stats", s.handleStats)
	route("GET /api/feature-ranking", s.handleRanking)
	route("POST /api/fingerprint", s.handleFingerprint)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return s.observe(s.cors(s.limit(mux)))
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.log.Error("request failed", "request_id", RequestID(r.Context()), "error", err)
	}
	writeError(w, code, err.Error())
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	entries, err := s.lister.List()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type columnMeta struct {
	IsNumeric bool `json:"isNumeric"`
}

type dataResponse struct {
	Data     []map[string]any `json:"data"`
	Metadata struct {
		Columns map[string]columnMeta `json:"columns"`
	} `json:"metadata"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	ds, err := s.pipeline.Dataset(r.Context(), r.PathValue("identifier"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var resp dataResponse
	resp.Data = make([]map[string]any, ds.Len())
	for i := range resp.Data {
		resp.Data[i] = ds.Record(i)
	}
	resp.Metadata.Columns = make(map[string]columnMeta, len(ds.Columns))
	for _, c := range ds.Columns {
		resp.Metadata.Columns[c.Name] = columnMeta{IsNumeric: c.Numeric}
	}
	writeJSON(w, http.StatusOK, resp)
}

type projectedRow struct {
	ID                   string           `json:"id"`
	Pos                  projection.Point `json:"pos"`
	Original             map[string]any   `json:"original"`
	NonNumericAttributes []string         `json:"nonNumericAttributes"`
}

type projectionResponse struct {
	ProjectionData []projectedRow           `json:"projectionData"`
	GlobalStats    map[string]stats.Summary `json:"globalStats"`
}

func (s *Server) method(r *http.Request) string {
	if m := r.URL.Query().Get("method"); m != "" {
		return m
	}
	return s.defaultMethod
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.URL.Query().Get("filename")
	pts, err := s.pipeline.Projection(ctx, name, s.method(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ds, err := s.pipeline.Dataset(ctx, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	global, err := s.pipeline.Stats(ctx, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	nonNumeric := ds.NonNumeric()
	if nonNumeric == nil {
		nonNumeric = []string{}
	}
	resp := projectionResponse{
		ProjectionData: make([]projectedRow, len(pts)),
		GlobalStats:    global.Map(),
	}
	for i, p := range pts {
		resp.ProjectionData[i] = projectedRow{
			ID:                   ds.IDs[i],
			Pos:                  p,
			Original:             ds.Record(i),
			NonNumericAttributes: nonNumeric,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	global, err := s.pipeline.Stats(r.Context(), r.URL.Query().Get("filename"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, global.Map())
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	radius := s.defaultRadius
	if v := q.Get("radius"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: malformed radius %q", errBadRequest, v))
			return
		}
		radius = f
	}
	rows, err := s.pipeline.Ranking(r.Context(), q.Get("filename"), s.method(r), radius)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type fingerprintRequest struct {
	Filename string   `json:"filename"`
	IDs      []string `json:"ids"`
}

func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	var req fingerprintRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.fail(w, r, fmt.Errorf("%w: decode body: %v", errBadRequest, err))
		return
	}
	fp, err := s.pipeline.Fingerprint(r.Context(), req.Filename, req.IDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fp)
}
