package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kalambet/intelapi/internal/metrics"
	"github.com/kalambet/intelapi/internal/protocol"
	"github.com/kalambet/intelapi/internal/session"
)

// streamResponse writes the session's chunks as server-sent events. A client
// disconnect cancels the request context, which stops the session stream.
func streamResponse(w http.ResponseWriter, r *http.Request, s *session.Session, g *generation, log GenerationLog) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "server_error", "streaming not supported")
		return
	}

	metrics.StreamingConnections.Inc()
	defer metrics.StreamingConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	chunks := s.Stream(ctx)

	headersSent := false
	sendHeaders := func() {
		if headersSent {
			return
		}
		headersSent = true
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
	}

	finish := session.FinishNone
	toolCalls := 0
	for chunk := range chunks {
		payload, err := json.Marshal(protocol.ChatCompletionChunk{
			Envelope: g.envelope(protocol.ObjectChatCompletionChunk),
			Choices: []protocol.ChunkChoice{{
				FinishReason:       chunk.FinishReason.Wire(),
				NativeFinishReason: chunk.FinishReason.Wire(),
				Delta: protocol.Delta{
					Role:      protocol.RoleAssistant,
					Content:   chunk.Content,
					ToolCalls: chunk.ToolCalls,
				},
			}},
		})
		if err != nil {
			if !headersSent {
				httpError(w, http.StatusInternalServerError, "server_error", "encoding chunk: %v", err)
			} else {
				slog.Warn("encoding stream chunk", "id", g.id, "error", err)
			}
			cancel()
			drain(chunks)
			return
		}

		sendHeaders()
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()

		toolCalls += len(chunk.ToolCalls)
		if chunk.FinishReason != session.FinishNone {
			finish = chunk.FinishReason
		}
	}

	if r.Context().Err() != nil {
		slog.Debug("client disconnected", "id", g.id)
		return
	}

	sendHeaders()
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	g.finish(finish, toolCalls, log)
}

// drain consumes the remaining chunks so the session goroutine can exit.
func drain(chunks <-chan session.Chunk) {
	for range chunks {
	}
}
