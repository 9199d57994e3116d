// Package httpapi exposes the engine over a small JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/compose"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/engine"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/store"
)

// Handler serves the assessment API.
type Handler struct {
	engine      *engine.Engine
	defaultSpec compose.Spec
	logger      *slog.Logger
}

// NewHandler returns a Handler. defaultSpec is used when a compose request
// carries no spec of its own, and its cooldown drives status lookups.
func NewHandler(e *engine.Engine, defaultSpec compose.Spec, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: e, defaultSpec: defaultSpec, logger: logger}
}

// Router mounts every route.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tests", h.Compose)
		r.Post("/tests/{testID}/submit", h.Submit)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/status", h.Status)
			r.Get("/attempts", h.Attempts)
			r.Post("/reset", h.Reset)
		})
	})
	return r
}

type composeRequest struct {
	UserID string        `json:"user_id"`
	Spec   *compose.Spec `json:"spec,omitempty"`
}

// Compose builds a test and returns its public view.
func (h *Handler) Compose(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "user_id is required", r))
		return
	}
	spec := h.defaultSpec
	if req.Spec != nil {
		spec = *req.Spec
		// Clients choose the test shape, never a shorter retake window.
		spec.CooldownSeconds = max(spec.CooldownSeconds, h.defaultSpec.CooldownSeconds)
	}

	test, err := h.engine.Compose(r.Context(), req.UserID, spec)
	if err != nil {
		h.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, test.Public())
}

type submitRequest struct {
	Answers        []compose.Answer `json:"answers"`
	WithPercentile bool             `json:"with_percentile"`
}

// Submit grades a composed test.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	report, err := h.engine.Submit(r.Context(), chi.URLParam(r, "testID"), req.Answers,
		engine.SubmitOptions{WithPercentile: req.WithPercentile})
	if err != nil {
		h.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Status reports a user's lifecycle state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Status(r.Context(), chi.URLParam(r, "userID"), h.defaultSpec.Cooldown())
	if err != nil {
		h.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type attemptView struct {
	Sequence         int64     `json:"sequence"`
	Kind             string    `json:"kind"`
	Timestamp        time.Time `json:"timestamp"`
	AttemptID        string    `json:"attempt_id,omitempty"`
	TestType         string    `json:"test_type,omitempty"`
	Mode             string    `json:"mode,omitempty"`
	RawScore         int       `json:"raw_score"`
	Total            int       `json:"total"`
	Percentage       int       `json:"percentage"`
	PerformanceLevel string    `json:"performance_level,omitempty"`
	Note             string    `json:"note,omitempty"`
}

// Attempts lists a user's graded attempts and resets.
func (h *Handler) Attempts(w http.ResponseWriter, r *http.Request) {
	events, err := h.engine.Attempts(r.Context(), chi.URLParam(r, "userID"), store.QueryOpts{})
	if err != nil {
		h.handleEngineError(w, r, err)
		return
	}
	out := make([]attemptView, 0, len(events))
	for _, e := range events {
		out = append(out, attemptView{
			Sequence:         e.Sequence,
			Kind:             e.Kind,
			Timestamp:        e.Timestamp,
			AttemptID:        e.AttemptID,
			TestType:         e.TestType,
			Mode:             e.Mode,
			RawScore:         e.RawScore,
			Total:            e.Total,
			Percentage:       e.Percentage,
			PerformanceLevel: e.PerformanceLevel,
			Note:             e.Note,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Reset clears a user's history.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ResetHistory(r.Context(), chi.URLParam(r, "userID"), "api request"); err != nil {
		h.handleEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Shared helpers

type apiError struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) errorResponse {
	return errorResponse{Error: apiError{
		Code:      code,
		Message:   message,
		RequestID: chimiddleware.GetReqID(r.Context()),
	}}
}

func (h *Handler) handleEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		retake  *compose.RetakeNotAllowedError
		invalid *compose.InvalidSpecError
	)
	switch {
	case errors.As(err, &retake):
		resp := errorResp("RETAKE_NOT_ALLOWED", err.Error(), r)
		resp.Error.RemainingSeconds = retake.RemainingSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(retake.RemainingSeconds()))
		writeJSON(w, http.StatusTooManyRequests, resp)
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_SPEC", invalid.Reason, r))
	case errors.Is(err, compose.ErrPoolExhausted):
		writeJSON(w, http.StatusConflict, errorResp("POOL_EXHAUSTED", err.Error(), r))
	case errors.Is(err, engine.ErrUnknownTest):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Test not found", r))
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Internal error", r))
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
