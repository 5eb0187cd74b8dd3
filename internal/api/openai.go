package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/intelapi/internal/metrics"
	"github.com/kalambet/intelapi/internal/protocol"
	"github.com/kalambet/intelapi/internal/session"
	"github.com/kalambet/intelapi/internal/storage"
)

const maxRequestBodySize = 4 << 20 // 4MB

// GenerationLog records finished generations.
type GenerationLog interface {
	SaveGeneration(g storage.Generation) error
	GetGeneration(id string) (storage.Generation, error)
	RecentGenerations(limit int) ([]storage.Generation, error)
	CountByFinishReason() (map[string]int, error)
}

// GenerationSummary counts logged generations by finish reason.
type GenerationSummary struct {
	Total         int            `json:"total"`
	FinishReasons map[string]int `json:"finish_reasons"`
}

// Deps holds dependencies for the HTTP API.
type Deps struct {
	Catalog *session.Catalog
	Log     GenerationLog // optional; nil disables the generation log
	Metrics bool          // serve /metrics
}

// NewOpenAIHandler returns an http.Handler implementing the OpenAI-compatible
// REST API under /api/v1, plus /health and optionally /metrics.
func NewOpenAIHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", handleHealth)
	if deps.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", handleModels(deps.Catalog))
		r.Post("/chat/completions", handleChatCompletions(deps))
		r.Get("/generations", handleGenerations(deps.Log))
		r.Get("/generations/summary", handleGenerationSummary(deps.Log))
		r.Get("/generations/{id}", handleGeneration(deps.Log))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleModels(catalog *session.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := protocol.ModelList{Object: protocol.ObjectList, Data: []protocol.Model{}}
		for _, name := range catalog.Names() {
			list.Data = append(list.Data, protocol.Model{ID: name, Object: protocol.ObjectModel})
		}
		writeJSON(w, list)
	}
}

func handleChatCompletions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req protocol.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Debug("decoding chat request", "error", err)
			rejectRequest(w, &session.RequestError{Kind: session.NonConformingBody, Err: err})
			return
		}

		s, err := session.New(deps.Catalog, &req)
		if err != nil {
			var reqErr *session.RequestError
			if errors.As(err, &reqErr) {
				rejectRequest(w, reqErr)
				return
			}
			httpError(w, http.StatusInternalServerError, "server_error", "%v", err)
			return
		}

		g := newGeneration(s)
		if s.IsStream() {
			streamResponse(w, r, s, g, deps.Log)
			return
		}

		chunk := s.Respond(r.Context())
		g.finish(chunk.FinishReason, len(chunk.ToolCalls), deps.Log)

		var body any
		if s.IsChat() {
			body = protocol.ChatCompletion{
				Envelope: g.envelope(protocol.ObjectChatCompletion),
				Choices: []protocol.ChatChoice{{
					FinishReason:       chunk.FinishReason.Wire(),
					NativeFinishReason: chunk.FinishReason.Wire(),
					Message: protocol.ResponseMessage{
						Role:      protocol.RoleAssistant,
						Content:   chunk.Content,
						ToolCalls: chunk.ToolCalls,
					},
				}},
			}
		} else {
			body = protocol.TextCompletion{
				Envelope: g.envelope(protocol.ObjectChatCompletion),
				Choices: []protocol.TextChoice{{
					FinishReason: chunk.FinishReason.Wire(),
					Text:         chunk.Content,
				}},
			}
		}

		payload, err := json.Marshal(body)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "encoding response: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	}
}

func handleGenerations(log GenerationLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if log == nil {
			httpError(w, http.StatusNotFound, "not_found", "generation log is disabled")
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = min(n, 500)
		}

		gens, err := log.RecentGenerations(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "listing generations: %v", err)
			return
		}
		writeJSON(w, gens)
	}
}

func handleGenerationSummary(log GenerationLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if log == nil {
			httpError(w, http.StatusNotFound, "not_found", "generation log is disabled")
			return
		}
		counts, err := log.CountByFinishReason()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "counting generations: %v", err)
			return
		}
		summary := GenerationSummary{FinishReasons: counts}
		for _, n := range counts {
			summary.Total += n
		}
		writeJSON(w, summary)
	}
}

func handleGeneration(log GenerationLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if log == nil {
			httpError(w, http.StatusNotFound, "not_found", "generation log is disabled")
			return
		}
		id := chi.URLParam(r, "id")
		g, err := log.GetGeneration(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "generation %q not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "reading generation: %v", err)
			return
		}
		writeJSON(w, g)
	}
}

// generation tracks one completion from request to finish.
type generation struct {
	id      string
	created time.Time
	session *session.Session
}

func newGeneration(s *session.Session) *generation {
	return &generation{
		id:      "gen-" + uuid.NewString(),
		created: time.Now(),
		session: s,
	}
}

func (g *generation) envelope(object string) protocol.Envelope {
	return protocol.Envelope{
		ID:      g.id,
		Object:  object,
		Created: g.created.Unix(),
		Model:   g.session.Model(),
	}
}

// finish records metrics and the log row for a completed generation.
func (g *generation) finish(reason session.FinishReason, toolCalls int, log GenerationLog) {
	elapsed := time.Since(g.created)
	s := g.session

	metrics.GenerationsTotal.WithLabelValues(s.Model(), s.Mode(), string(reason)).Inc()
	metrics.GenerationDuration.WithLabelValues(s.Model(), strconv.FormatBool(s.IsStream())).Observe(elapsed.Seconds())

	slog.Debug("generation finished",
		"id", g.id,
		"model", s.Model(),
		"mode", s.Mode(),
		"finish_reason", string(reason),
		"duration_ms", elapsed.Milliseconds(),
	)

	if log == nil {
		return
	}
	err := log.SaveGeneration(storage.Generation{
		ID:           g.id,
		CreatedAt:    g.created,
		Model:        s.Model(),
		Mode:         s.Mode(),
		Stream:       s.IsStream(),
		Structured:   s.IsStructured(),
		FinishReason: string(reason),
		DurationMs:   elapsed.Milliseconds(),
		ToolCalls:    toolCalls,
	})
	if err != nil {
		slog.Warn("failed to save generation", "id", g.id, "error", err)
	}
}

func rejectRequest(w http.ResponseWriter, err *session.RequestError) {
	metrics.RequestErrorsTotal.WithLabelValues(err.Kind.String()).Inc()
	httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", err.Kind.Reason())
}

func writeJSON(w http.ResponseWriter, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "server_error", "encoding response: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorBody{
		Error: protocol.ErrorDetail{
			Message: fmt.Sprintf(format, args...),
			Type:    errType,
		},
	})
}
