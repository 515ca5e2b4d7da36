package infra

import (
	"context"
	"sync"
	"time"

	"chat-gateway/middleware/ratelimit/domain"
)

// MemoryWindowStore é o contador de janela fixa em memória, por chave.
//
// Em vez de expirar cada entrada, a tabela inteira é descartada quando passa
// mais de cleanupEvery desde a última limpeza. Isso limita a memória ocupada por
// chaves abandonadas sem precisar de timer por entrada.
type MemoryWindowStore struct {
	mu          sync.Mutex
	entries     map[domain.Key]domain.WindowState
	policy      domain.Policy
	lastCleanup time.Time

	cleanupEvery time.Duration
}

type StoreOption func(*MemoryWindowStore)

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

// NewMemoryWindowStore cria o store. `start` é o instante inicial da contagem de limpeza
// (normalmente clock.Now()).
func NewMemoryWindowStore(policy domain.Policy, start time.Time, opts ...StoreOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		entries:      make(map[domain.Key]domain.WindowState),
		policy:       policy,
		lastCleanup:  start,
		cleanupEvery: domain.DefaultCleanupEvery,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryWindowStore) Policy() domain.Policy { return s.policy }

// Admit implementa domain.WindowStore. Nunca retorna erro.
func (s *MemoryWindowStore) Admit(_ context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	if key == "" {
		key = domain.UnknownKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cleanupEvery > 0 && now.Sub(s.lastCleanup) > s.cleanupEvery {
		clear(s.entries)
		s.lastCleanup = now
	}

	st, ok := s.entries[key]
	if !ok || st.Expired(now) {
		st = domain.WindowState{Count: 0, ResetTime: now.Add(s.policy.Window)}
		s.entries[key] = st
	}

	dec := domain.Decision{
		Limit:   s.policy.Max,
		ResetAt: st.ResetTime,
	}

	if st.Count >= s.policy.Max {
		// rejeição não incrementa o contador
		dec.RetryAfter = st.ResetTime.Sub(now)
		return dec, nil
	}

	st.Count++
	s.entries[key] = st

	dec.Allowed = true
	dec.Remaining = s.policy.Max - st.Count
	return dec, nil
}

// State retorna o estado atual de uma chave (usado em testes e diagnóstico).
func (s *MemoryWindowStore) State(key domain.Key) (domain.WindowState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[key]
	return st, ok
}

// Len retorna quantas chaves estão na tabela.
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
