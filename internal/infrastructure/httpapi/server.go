package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/infrastructure/scheduler"
	"TubeDigest/internal/ports"
	"TubeDigest/internal/usecase"
)

// Server exposes the manual trigger surface. It drives the same use cases as
// the scheduler; nothing here has logic of its own.
type Server struct {
	pipeline *usecase.Pipeline
	poller   *usecase.Poller
	reporter *usecase.Reporter
	sched    *scheduler.Scheduler
	store    ports.Store
	logger   *slog.Logger
	http     *http.Server
}

// New builds the API server bound to addr.
func New(addr string, pipeline *usecase.Pipeline, poller *usecase.Poller, reporter *usecase.Reporter, sched *scheduler.Scheduler, store ports.Store, logger *slog.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		poller:   poller,
		reporter: reporter,
		sched:    sched,
		store:    store,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/process", s.handleProcess)
	mux.HandleFunc("POST /api/sources", s.handleAddSource)
	mux.HandleFunc("DELETE /api/sources/{id}", s.handleRemoveSource)
	mux.HandleFunc("POST /api/check", s.handleCheck)
	mux.HandleFunc("POST /api/report", s.handleReport)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http api listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

type apiError struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("cannot encode response", "error", err)
	}
}

// writeError maps domain failures to client-facing statuses; only genuinely
// unexpected errors surface as 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidSourceKind):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoTranscript),
		errors.Is(err, domain.ErrProvider),
		errors.Is(err, domain.ErrSummarization),
		errors.Is(err, domain.ErrDeliveryFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, apiError{Error: err.Error()})
}

// decodeBody parses a JSON request body; an empty body is an empty request.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error":"invalid json body"}`, http.StatusBadRequest)
		return req, false
	}
	return req, true
}

type processRequest struct {
	URL string `json:"url"`
}

type processResponse struct {
	Video      string                  `json:"video"`
	Title      string                  `json:"title"`
	Cached     bool                    `json:"cached"`
	Summary    domain.Summary          `json:"summary"`
	Deliveries []domain.DeliveryResult `json:"deliveries,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[processRequest](w, r)
	if !ok {
		return
	}
	if req.URL == "" {
		s.writeJSON(w, http.StatusBadRequest, apiError{Error: "url is required"})
		return
	}

	res, err := s.pipeline.ProcessURL(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, processResponse{
		Video:      res.Item.ID,
		Title:      res.Item.Title,
		Cached:     res.Cached,
		Summary:    res.Summary,
		Deliveries: res.Deliveries,
	})
}

type addSourceRequest struct {
	Input string `json:"input"`
}

type sourceResponse struct {
	CanonicalID   string    `json:"canonical_id"`
	DisplayName   string    `json:"display_name"`
	LastSeenItem  string    `json:"last_seen_item,omitempty"`
	LastSeenTitle string    `json:"last_seen_title,omitempty"`
	LastCheckedAt time.Time `json:"last_checked_at,omitzero"`
	LastError     string    `json:"last_error,omitempty"`
}

func toSourceResponse(src domain.Source) sourceResponse {
	return sourceResponse{
		CanonicalID:   src.CanonicalID,
		DisplayName:   src.DisplayName,
		LastSeenItem:  src.LastSeenItemID,
		LastSeenTitle: src.LastSeenTitle,
		LastCheckedAt: src.LastCheckedAt,
		LastError:     src.LastError,
	}
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[addSourceRequest](w, r)
	if !ok {
		return
	}
	if req.Input == "" {
		s.writeJSON(w, http.StatusBadRequest, apiError{Error: "input is required"})
		return
	}

	src, err := s.poller.AddSource(r.Context(), req.Input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toSourceResponse(src))
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.poller.RemoveSource(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkRequest struct {
	Source string `json:"source,omitempty"`
}

type checkResponse struct {
	Outcomes []usecase.CheckOutcome `json:"outcomes"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[checkRequest](w, r)
	if !ok {
		return
	}

	var outcomes []usecase.CheckOutcome
	if req.Source != "" {
		src, err := s.store.GetSource(r.Context(), req.Source)
		if err != nil {
			s.writeError(w, err)
			return
		}
		outcomes = []usecase.CheckOutcome{s.poller.CheckSource(r.Context(), src)}
	} else {
		outcomes = s.poller.Sweep(r.Context())
	}
	s.writeJSON(w, http.StatusOK, checkResponse{Outcomes: outcomes})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	out, err := s.reporter.Run(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

type statusResponse struct {
	Sources         []sourceResponse `json:"sources"`
	NextSweepInSec  float64          `json:"next_sweep_in_seconds"`
	NextReportInSec float64          `json:"next_report_in_seconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := statusResponse{Sources: make([]sourceResponse, 0, len(sources))}
	for _, src := range sources {
		resp.Sources = append(resp.Sources, toSourceResponse(src))
	}
	if s.sched != nil {
		resp.NextSweepInSec = s.sched.TimeUntilNext(scheduler.JobSweep).Seconds()
		resp.NextReportInSec = s.sched.TimeUntilNext(scheduler.JobReport).Seconds()
	}
	s.writeJSON(w, http.StatusOK, resp)
}
