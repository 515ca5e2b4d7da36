package application

import (
	"context"
	"sync"
	"time"

	"chat-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService limita quantas chamadas ao upstream ficam em voo ao mesmo
// tempo, com timeout de espera, sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera até o ctx da requisição encerrar.
//   - Se `AcquireTimeout > 0`, espera no máximo o timeout.
//
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida. O release
// devolvido é idempotente.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(release) }, true
}
