package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/divyekant/memoryd/internal/apperr"
)

var rateLimitErr = apperr.NewResourceExhausted("rate limit exceeded", 1)

// withMiddleware wraps h with request logging, panic recovery, optional
// API-key auth, and per-client-IP rate limiting, in that outer-to-inner
// order so recovery can still log a panicked, authorized request.
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	h = s.rateLimit(h)
	h = s.requireAPIKey(h)
	h = s.recoverPanic(h)
	h = s.logRequests(h)
	return h
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.incActive(1)
		defer s.incActive(-1)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Duration("elapsed", time.Since(start)),
		)

		if s.usage != nil {
			if err := s.usage.RecordRequest(r.Context(), r.URL.Path); err != nil {
				s.logger.Warn("usage: record request failed", slog.String("error", err.Error()))
			}
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic handling request",
					slog.String("path", r.URL.Path),
					slog.Any("recover", rec),
				)
				body := errorBody{}
				body.Error.Kind = apperr.Internal
				body.Error.Message = "internal error"
				writeJSON(w, http.StatusInternalServerError, body)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey rejects requests with a missing or wrong API key when one
// is configured. GET /health stays open so load balancers don't need a
// key just to probe liveness; /health/ready requires the key.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if !s.authorized(r) {
			body := errorBody{}
			body.Error.Kind = "UNAUTHENTICATED"
			body.Error.Message = "missing or invalid API key"
			writeJSON(w, http.StatusUnauthorized, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimit applies a token-bucket-per-client-IP limiter sized from
// cfg.RateLimitRPS, following the trusted-proxy-aware IP extraction that
// keeps X-Forwarded-For spoofing from bypassing the limit.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.cfg.RateLimitRPS <= 0 {
		return next
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*rateLimitEntry)
	)
	burst := s.cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, s.cfg.TrustedProxies)

		mu.Lock()
		entry, ok := clients[ip]
		if !ok {
			entry = &rateLimitEntry{limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimitRPS), burst)}
			clients[ip] = entry
		}
		entry.lastSeen = time.Now()
		limiter := entry.limiter
		if len(clients) > 10000 {
			pruneStaleClients(clients)
		}
		mu.Unlock()

		if !limiter.Allow() {
			writeError(w, rateLimitErr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pruneStaleClients(clients map[string]*rateLimitEntry) {
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, c := range clients {
		if c.lastSeen.Before(cutoff) {
			delete(clients, ip)
		}
	}
}

func clientIP(r *http.Request, trustedProxies []string) string {
	direct := r.RemoteAddr
	if idx := strings.LastIndex(direct, ":"); idx > 0 {
		direct = direct[:idx]
	}

	trusted := false
	for _, p := range trustedProxies {
		if p == direct {
			trusted = true
			break
		}
	}
	if !trusted {
		return direct
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return direct
}
