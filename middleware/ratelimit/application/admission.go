package application

import (
	"context"
	"time"

	"chat-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// AdmissionController decide, antes de qualquer trabalho no upstream, se um
// cliente ainda tem cota na janela corrente.
//
// É construído uma vez por processo e compartilhado entre os handlers. Ele não
// sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type AdmissionController struct {
	Store domain.WindowStore
	// Fallback é usado quando Store retorna erro (ex.: Redis fora do ar).
	// Se nil, o erro nega a requisição; nunca libera sem contar.
	Fallback domain.WindowStore
	Clock    domain.Clock
	Logger   *zap.Logger
}

func (c *AdmissionController) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func (c *AdmissionController) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// CheckAndAdmit consulta e, se houver cota, consome uma unidade para a chave.
func (c *AdmissionController) CheckAndAdmit(ctx context.Context, key domain.Key) domain.Decision {
	if c == nil || c.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if key == "" {
		key = domain.UnknownKey
	}

	now := c.now()
	dec, err := c.Store.Admit(ctx, key, now)
	if err == nil {
		return dec
	}

	if c.Fallback == nil {
		c.logger().Error("admission store failed, denying request", zap.Error(err))
		return domain.Decision{Allowed: false, RetryAfter: time.Second}
	}

	c.logger().Warn("admission store failed, using fallback store", zap.Error(err))
	dec, err = c.Fallback.Admit(ctx, key, now)
	if err != nil {
		c.logger().Error("admission fallback store failed, denying request", zap.Error(err))
		return domain.Decision{Allowed: false, RetryAfter: time.Second}
	}
	return dec
}
