// Package mosstest provides an in-process fake of the Moss semantic search
// API for tests and offline development.
//
// The fake implements the same REST contract the SDK speaks: index
// lifecycle, document operations, query with top-k/alpha, and simulated
// clustering jobs that advance one step per status poll. State lives in
// memory and disappears with the server.
//
//	srv := mosstest.NewServer(mosstest.WithProjectKey("test-key"))
//	defer srv.Close()
//
//	client, _ := moss.New("test-project", "test-key",
//		moss.WithBaseURL(srv.URL()))
package mosstest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var (
	errIndexNotFound  = errors.New("index not found")
	errAlreadyExists  = errors.New("index already exists")
	errJobNotFound    = errors.New("job not found")
	errInvalidRequest = errors.New("invalid request")
)

// Server is a fake Moss API server.
type Server struct {
	store      *store
	logger     *zap.Logger
	projectKey string
	httpSrv    *httptest.Server
}

// Option configures the fake server.
type Option func(*Server)

// WithProjectKey makes the server reject requests whose bearer token does
// not match key. Without it any credentials are accepted.
func WithProjectKey(key string) Option {
	return func(s *Server) { s.projectKey = key }
}

// WithLogger enables request logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClusterSteps sets how many status polls a clustering job needs before
// it completes. Default: 3.
func WithClusterSteps(n int) Option {
	return func(s *Server) { s.store.clusterSteps = n }
}

// NewServer starts a fake Moss server. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		store:  newStore(0),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.httpSrv = httptest.NewServer(s.Handler())
	return s
}

// URL returns the base URL clients should use, including the /v1 prefix.
func (s *Server) URL() string {
	return s.httpSrv.URL + "/v1"
}

// Close shuts the server down.
func (s *Server) Close() {
	s.httpSrv.Close()
}

// Handler builds the chi router. Exposed so the fake can also be mounted
// inside another test server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(s.auth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/indexes", s.createIndex)
		r.Get("/indexes", s.listIndexes)
		r.Get("/indexes/{name}", s.getIndex)
		r.Delete("/indexes/{name}", s.deleteIndex)
		r.Post("/indexes/{name}/load", s.loadIndex)
		r.Post("/indexes/{name}/docs", s.addDocs)
		r.Get("/indexes/{name}/docs", s.getDocs)
		r.Delete("/indexes/{name}/docs", s.deleteDocs)
		r.Post("/indexes/{name}/query", s.query)
		r.Post("/clustering/jobs", s.startJob)
		r.Get("/clustering/jobs/{id}", s.jobStatus)
		r.Get("/clustering/jobs/{id}/clusters", s.jobClusters)
	})
	return r
}

// --- wire payloads ---

type docPayload struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
}

func (d docPayload) stored() storedDoc {
	return storedDoc{id: d.ID, text: d.Text, metadata: d.Metadata, embedding: d.Embedding}
}

func payloadFromStored(d storedDoc) docPayload {
	return docPayload{ID: d.id, Text: d.text, Metadata: d.metadata, Embedding: d.embedding}
}

type indexPayload struct {
	Name      string    `json:"name"`
	DocCount  int       `json:"doc_count"`
	Model     modelInfo `json:"model"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type modelInfo struct {
	ID string `json:"id"`
}

func indexToPayload(idx *storedIndex) indexPayload {
	return indexPayload{
		Name:      idx.name,
		DocCount:  len(idx.docs),
		Model:     modelInfo{ID: idx.model},
		Status:    "ready",
		CreatedAt: idx.createdAt,
	}
}

type jobPayload struct {
	JobID    string  `json:"job_id"`
	Index    string  `json:"index"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

func jobToPayload(j *storedJob) jobPayload {
	return jobPayload{JobID: j.id, Index: j.index, Status: j.status, Progress: j.progress}
}

// --- handlers ---

func (s *Server) createIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string       `json:"name"`
		Docs  []docPayload `json:"docs"`
		Model string       `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "index name is required")
		return
	}

	info, err := s.store.createIndex(req.Name, req.Model, req.Docs)
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) listIndexes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"indexes": s.store.listIndexes()})
}

func (s *Server) getIndex(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.getIndexInfo(chi.URLParam(r, "name"))
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) deleteIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.store.deleteIndex(chi.URLParam(r, "name")); err != nil {
		s.handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.loadIndex(name); err != nil {
		s.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (s *Server) addDocs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Docs   []docPayload `json:"docs"`
		Upsert bool         `json:"upsert"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	added, updated, err := s.store.addDocs(chi.URLParam(r, "name"), req.Docs, req.Upsert)
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added, "updated": updated})
}

func (s *Server) getDocs(w http.ResponseWriter, r *http.Request) {
	// Repeated ids parameters, one per document.
	ids := r.URL.Query()["ids"]
	docs, err := s.store.getDocs(chi.URLParam(r, "name"), ids)
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	out := make([]docPayload, len(docs))
	for i, d := range docs {
		out[i] = payloadFromStored(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"docs": out})
}

func (s *Server) deleteDocs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocIDs []string `json:"doc_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	deleted, err := s.store.deleteDocs(chi.URLParam(r, "name"), req.DocIDs)
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string    `json:"query"`
		TopK      int       `json:"top_k"`
		Alpha     *float64  `json:"alpha"`
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	// Snapshot under the store lock so ranking never reads live state.
	docs, err := s.store.getDocs(chi.URLParam(r, "name"), nil)
	if err != nil {
		s.handleStoreError(w, err)
		return
	}

	alpha := 0.5
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	start := time.Now()
	hits := rank(docs, req.Query, req.Embedding, req.TopK, alpha)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	type hitPayload struct {
		ID       string            `json:"id"`
		Text     string            `json:"text"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}
	out := make([]hitPayload, len(hits))
	for i, h := range hits {
		out[i] = hitPayload{ID: h.doc.id, Text: h.doc.text, Score: h.score, Metadata: h.doc.metadata}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":         req.Query,
		"docs":          out,
		"time_taken_ms": elapsed,
	})
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	job, err := s.store.startJob(req.Index)
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobToPayload(job))
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.pollJob(chi.URLParam(r, "id"))
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobToPayload(job))
}

func (s *Server) jobClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.store.jobClusters(chi.URLParam(r, "id"))
	if err != nil {
		s.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

// --- middleware and helpers ---

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if s.projectKey != "" && token != s.projectKey {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid project key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
		)
	})
}

// recoverer returns JSON instead of a plain text stacktrace.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.logger.Error("panic recovered",
					zap.Any("panic", rvr),
					zap.Stack("stacktrace"),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errIndexNotFound):
		writeError(w, http.StatusNotFound, "index_not_found", err.Error())
	case errors.Is(err, errAlreadyExists):
		writeError(w, http.StatusConflict, "index_already_exists", err.Error())
	case errors.Is(err, errJobNotFound):
		writeError(w, http.StatusNotFound, "job_not_found", err.Error())
	case errors.Is(err, errInvalidRequest):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		s.logger.Error("unhandled store error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
