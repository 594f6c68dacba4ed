package controller

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sharetube/watchsync/internal/auth"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
	"github.com/sharetube/watchsync/pkg/rest"
	"golang.org/x/time/rate"
)

func (c *Controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", uuid.Must(uuid.NewV7()).String()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *Controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"processing_time_us", time.Since(start).Microseconds(),
		)
	})
}

func (c *Controller) authMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := c.authenticator.Authenticate(r.Context(), auth.TokenFromRequest(r))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				c.logger.DebugContext(r.Context(), "unauthenticated request", "error", err)
				rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "unauthenticated"})
				return
			}
			c.writeError(w, r, err)
			return
		}

		ctx := ctxlogger.AppendCtx(r.Context(), slog.String("user_id", identity.UserID))
		next.ServeHTTP(w, r.WithContext(withIdentity(ctx, identity)))
	})
}

func (c *Controller) rateLimitMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.limiter != nil && !c.limiter.allow(clientAddr(r)) {
			rest.WriteJSON(w, http.StatusTooManyRequests, rest.Envelope{"error": "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ipLimiter keeps one token bucket per client address in a bounded cache.
type ipLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

func newIPLimiter(perMinute, capacity int) (*ipLimiter, error) {
	if capacity <= 0 {
		capacity = 10_000
	}

	limiters, err := lru.New[string, *rate.Limiter](capacity)
	if err != nil {
		return nil, err
	}

	return &ipLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: limiters,
	}, nil
}

func (l *ipLimiter) allow(addr string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(addr)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(addr, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}
