package application

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"chat-gateway/chat/domain"

	"go.uber.org/zap"
)

// DefaultTimeout é o prazo duro da chamada ao upstream.
const DefaultTimeout = 30 * time.Second

// Pipeline transforma uma requisição admitida numa chamada ao upstream e o
// resultado numa resposta para o cliente.
type Pipeline struct {
	Upstream domain.Upstream
	// APIKey é a credencial do servidor. Vazia => 500 por requisição, não crash no start.
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *Metrics
}

type loggerKey struct{}

// ContextWithLogger anexa um logger (ex.: já com request_id) ao ctx.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func (p *Pipeline) logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

// Handle executa os portões em ordem; a primeira falha encerra.
func (p *Pipeline) Handle(ctx context.Context, body []byte) Response {
	log := p.logger(ctx)

	req, err := domain.ParseChatRequest(body)
	if err != nil {
		details := "Messages must be provided as an array"
		var fe *domain.FormatError
		if errors.As(err, &fe) {
			details = fe.Details
		}
		log.Debug("rejecting malformed chat request", zap.Error(err))
		p.Metrics.observeGate(resultInvalidFormat)
		return errorResponse(http.StatusBadRequest, errorBody{Error: MsgInvalidRequestFormat, Details: details})
	}

	if strings.TrimSpace(p.APIKey) == "" {
		log.Error("upstream API key not configured")
		p.Metrics.observeGate(resultMisconfigured)
		return errorResponse(http.StatusInternalServerError, errorBody{Error: MsgServerConfiguration, Details: DetailsAPIKeyMissing})
	}

	upReq := domain.Normalize(req, p.Model)

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	outcome := p.call(callCtx, upReq)
	p.Metrics.observeOutcome(outcome, time.Since(start))

	logOutcome(log, outcome)
	return Translate(outcome)
}

func (p *Pipeline) call(ctx context.Context, req domain.UpstreamRequest) domain.Outcome {
	if p.Upstream == nil {
		return domain.SetupError{Message: "upstream client not configured"}
	}
	outcome := p.Upstream.Complete(ctx, p.APIKey, req)
	if outcome == nil {
		return domain.SetupError{Message: "upstream returned no outcome"}
	}
	return outcome
}

func logOutcome(log *zap.Logger, o domain.Outcome) {
	switch o := o.(type) {
	case domain.UpstreamError:
		log.Error("upstream returned error",
			zap.Int("status", o.Status),
			zap.ByteString("body", o.Body))
	case domain.NoResponse:
		log.Error("no response from upstream", zap.Error(o.Err))
	case domain.SetupError:
		log.Error("upstream call setup failed", zap.String("message", o.Message))
	}
}
