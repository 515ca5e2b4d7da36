package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript faz GET/SET PX/INCR/PTTL numa única operação atômica.
// Retorna {allowed, count, ttl_ms}. Rejeição não incrementa o contador.
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

local current = redis.call('GET', key)
if current == false then
	if limit <= 0 then
		return {0, 0, window}
	end
	redis.call('SET', key, 1, 'PX', window)
	return {1, 1, window}
end

local count = tonumber(current)
local ttl = redis.call('PTTL', key)
if ttl < 0 then
	redis.call('PEXPIRE', key, window)
	ttl = window
end

if count >= limit then
	return {0, count, ttl}
end

count = redis.call('INCR', key)
return {1, count, ttl}
`)

// RedisWindowStore é a variante distribuída do contador de janela fixa.
//
// Serve quando há mais de uma instância do gateway atrás de um balanceador: o
// estado em memória de cada processo não se soma. O TTL da chave substitui a
// limpeza global da versão em memória.
type RedisWindowStore struct {
	rdb    redis.Scripter
	policy domain.Policy
	prefix string
}

type RedisStoreOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisStoreOption {
	return func(s *RedisWindowStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisWindowStore(rdb redis.Scripter, policy domain.Policy, opts ...RedisStoreOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		policy: policy,
		prefix: "ratelimit:window",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Policy() domain.Policy { return s.policy }

func (s *RedisWindowStore) redisKey(key domain.Key) string {
	k := strings.TrimSpace(string(key))
	if k == "" {
		k = string(domain.UnknownKey)
	}
	return s.prefix + ":" + k
}

// Admit implementa domain.WindowStore.
func (s *RedisWindowStore) Admit(ctx context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	windowMs := s.policy.Window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}

	res, err := fixedWindowScript.Run(ctx, s.rdb, []string{s.redisKey(key)}, windowMs, s.policy.Max).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis window admit: %w", err)
	}
	if len(res) != 3 {
		return domain.Decision{}, fmt.Errorf("redis window admit: unexpected reply %v", res)
	}

	ttl := time.Duration(res[2]) * time.Millisecond
	dec := domain.Decision{
		Allowed: res[0] == 1,
		Limit:   s.policy.Max,
		ResetAt: now.Add(ttl),
	}
	if dec.Allowed {
		dec.Remaining = max(s.policy.Max-int(res[1]), 0)
	} else {
		dec.RetryAfter = ttl
	}
	return dec, nil
}
