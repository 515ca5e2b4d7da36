package infra

import (
	"context"

	"chat-gateway/middleware/ratelimit/domain"
)

// ChanPool é um semáforo baseado em channel que limita chamadas simultâneas ao upstream.
type ChanPool struct {
	sem chan struct{}
}

var _ domain.SlotPool = (*ChanPool)(nil)

// NewChanPool cria um pool com capacidade `max`.
func NewChanPool(max int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max)}
}

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// InFlight retorna quantas vagas estão ocupadas agora.
func (p *ChanPool) InFlight() int { return len(p.sem) }

func (p *ChanPool) Cap() int { return cap(p.sem) }
