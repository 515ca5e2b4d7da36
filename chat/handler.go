// Package chat expõe o pipeline de encaminhamento como http.Handler para
// POST /api/chat.
package chat

import (
	"errors"
	"io"
	"net/http"

	"chat-gateway/chat/application"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes limita o corpo aceito em POST /api/chat.
const DefaultMaxBodyBytes = 1 << 20

type Handler struct {
	Pipeline     *application.Pipeline
	MaxBodyBytes int64
	Logger       *zap.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		write(w, application.Response{
			Status: http.StatusMethodNotAllowed,
			Body:   []byte(`{"error":"Method not allowed"}`),
		})
		return
	}

	log := h.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	ctx := application.ContextWithLogger(r.Context(), log)

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		details := "Request body could not be read"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			details = "Request body too large"
		}
		log.Warn("reading chat request body failed", zap.Error(err))
		write(w, application.Response{
			Status: http.StatusBadRequest,
			Body:   []byte(`{"error":"` + application.MsgInvalidRequestFormat + `","details":"` + details + `"}`),
		})
		return
	}

	write(w, h.Pipeline.Handle(ctx, body))
}

func write(w http.ResponseWriter, resp application.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
