package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore guarda contadores de admitidos/negados em hashes do Redis.
//
// Layout das chaves (prefixo padrão "ratelimit:stats"):
//
//	<prefix>:total                 admitted|denied (cumulativo, sem TTL)
//	<prefix>:minute:<yyyymmddhhmm> admitted|denied (com TTL)
//	<prefix>:route                 "<METHOD> <path>:admitted|denied"
//	<prefix>:client:<key>          admitted|denied (só com trackKeys, com TTL)
type RedisStatsStore struct {
	// pipe cria um pipeline novo a cada Record.
	pipe func() redis.Pipeliner

	prefix string
	// ttl aplica apenas em chaves de série temporal / por cliente.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	if rdb != nil {
		s.pipe = rdb.Pipeline
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func statsField(allowed bool) string {
	if allowed {
		return "admitted"
	}
	return "denied"
}

type statsKey struct {
	name    string
	field   string
	expires bool
}

// keys retorna as chaves/campos que um evento incrementa, na ordem em que são escritos.
func (s *RedisStatsStore) keys(ev domain.StatsEvent) []statsKey {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := statsField(ev.Allowed)

	out := []statsKey{{name: s.prefix + ":total", field: field}}
	if s.bucket == "minute" {
		out = append(out, statsKey{
			name:    fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504")),
			field:   field,
			expires: true,
		})
	}
	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		out = append(out, statsKey{name: s.prefix + ":route", field: route + ":" + field})
	}
	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		out = append(out, statsKey{name: s.prefix + ":client:" + k, field: field, expires: true})
	}
	return out
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.pipe == nil {
		return nil
	}

	pipe := s.pipe()
	for _, k := range s.keys(ev) {
		pipe.HIncrBy(ctx, k.name, k.field, 1)
		if k.expires && s.ttl > 0 {
			pipe.Expire(ctx, k.name, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
