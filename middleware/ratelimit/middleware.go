package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"chat-gateway/middleware/ratelimit/application"
	"chat-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// TooManyRequestsMessage é o corpo padrão da resposta 429.
const TooManyRequestsMessage = "Too many requests. Please try again later."

type KeyFunc func(r *http.Request) string

type Options struct {
	Controller          *application.AdmissionController
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RejectMessage       string
	AddRateLimitHeaders bool
	Logger              *zap.Logger
	// Now é usado só para carimbar eventos de estatística.
	Now func() time.Time
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		remote := strings.TrimSpace(r.RemoteAddr)
		host, _, err := net.SplitHostPort(remote)
		if err == nil && host != "" {
			return host
		}
		if remote != "" {
			return remote
		}
		return string(domain.UnknownKey)
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RejectMessage == "" {
		opts.RejectMessage = TooManyRequestsMessage
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))
			dec := opts.Controller.CheckAndAdmit(r.Context(), key)

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      opts.Now(),
				})
				if err != nil {
					opts.Logger.Warn("rate limit stats record failed", zap.Error(err))
				}
			}

			if opts.AddRateLimitHeaders && dec.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				w.Header().Set("X-RateLimit-Reset", formatInt64(dec.ResetAt.Unix()))
			}

			if !dec.Allowed {
				opts.Logger.Info("rate limit exceeded",
					zap.String("client", string(key)),
					zap.String("path", r.URL.Path),
					zap.Duration("retry_after", dec.RetryAfter))
				if dec.RetryAfter > 0 {
					w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				}
				writeError(w, opts.RejectStatus, opts.RejectMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
