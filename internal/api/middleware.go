// internal/api/middleware.go
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/metrics"
)

// MaxRequestBody caps request bodies accepted by MaxBodySize
const MaxRequestBody = 1 << 20

// Context keys for git info
type contextKey string

const (
	AuthorNameKey  contextKey = "author_name"
	AuthorEmailKey contextKey = "author_email"
	RepoKey        contextKey = "repo"
	requestIDKey   contextKey = "request_id"
)

// GitContext extracts git info from headers and adds to context
func GitContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if name := r.Header.Get(apitypes.HeaderAuthorName); name != "" {
			ctx = context.WithValue(ctx, AuthorNameKey, name)
		}
		if email := r.Header.Get(apitypes.HeaderAuthorEmail); email != "" {
			ctx = context.WithValue(ctx, AuthorEmailKey, email)
		}
		if repo := r.Header.Get(apitypes.HeaderRepo); repo != "" {
			ctx = context.WithValue(ctx, RepoKey, repo)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ctxString(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetAuthorName returns author name from context
func GetAuthorName(ctx context.Context) string { return ctxString(ctx, AuthorNameKey) }

// GetAuthorEmail returns author email from context
func GetAuthorEmail(ctx context.Context) string { return ctxString(ctx, AuthorEmailKey) }

// GetRepo returns repo from context
func GetRepo(ctx context.Context) string { return ctxString(ctx, RepoKey) }

// GetRequestID returns the request ID assigned by RequestID
func GetRequestID(ctx context.Context) string { return ctxString(ctx, requestIDKey) }

// RequestID keeps an incoming X-Request-ID or assigns a fresh one, and echoes
// it on the response
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, reqID)))
	})
}

// RequestLogger logs one line per request once it completes
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := logger.Info()
			if status >= http.StatusInternalServerError {
				ev = logger.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", GetRequestID(r.Context())).
				Msg("request")
		})
	}
}

// Instrument records request counts and latency per chi route pattern
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			var route string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, status, time.Since(start).Seconds())
		})
	}
}

// MaxBodySize rejects bodies larger than MaxRequestBody
func MaxBodySize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBody)
		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware allows the listed origins; "*" allows any
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed["*"] || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, "+
					apitypes.HeaderAuthorName+", "+apitypes.HeaderAuthorEmail+", "+apitypes.HeaderRepo)
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions && origin != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter is a per-client-IP token bucket refilled at limit per window
type RateLimiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter allows limit requests per window for each client IP
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes a token for key. When none is left it returns the seconds
// until the next one.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.limit), lastRefill: now}
		rl.buckets[key] = b
	}

	rate := float64(rl.limit) / rl.window.Seconds()
	b.tokens += now.Sub(b.lastRefill).Seconds() * rate
	if b.tokens > float64(rl.limit) {
		b.tokens = float64(rl.limit)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, int((1-b.tokens)/rate) + 1
}

// Cleanup drops buckets idle for longer than one window
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.window)
	for k, b := range rl.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

// StartCleanup runs Cleanup every window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}

// Middleware answers 429 once a client IP runs out of tokens
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ok, retryAfter := rl.Allow(ip); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			respondJSON(w, http.StatusTooManyRequests, errorBody("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
