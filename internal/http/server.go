package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

// TransactionAPI is the service surface the handlers need.
// *services.TransactionService satisfies it.
type TransactionAPI interface {
	Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Get(ctx context.Context, id int64) (core.Transaction, error)
	Update(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error)
	Delete(ctx context.Context, id int64) error
	Query(ctx context.Context, f core.Filter, limit, offset int) ([]core.Transaction, error)
	Statistics(ctx context.Context, f core.Filter) (core.Summary, error)
	Categories(ctx context.Context) ([]core.Category, error)
	Setting(ctx context.Context, key string) (string, error)
	Count(ctx context.Context) (int64, error)
	Export(ctx context.Context) (services.Export, error)
	Import(ctx context.Context, txs []core.Transaction) (services.ImportResult, error)
}

type Server struct {
	http.Server
	api         TransactionAPI
	cfg         *config.Config
	rateLimiter *rateLimiter

	// Statistics summaries are cached per filter and purged wholesale
	// on every mutation.
	statsCache   *cache.LRUCache[core.Summary]
	cacheManager *cache.Manager

	reqLog *applog.StructuredLogger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg *config.Config, api TransactionAPI) *Server {
	mux := http.NewServeMux()
	logger := applog.New(applog.Config{Component: applog.ComponentHTTP})

	s := &Server{
		Server: http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      applog.Middleware(logger)(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api:          api,
		cfg:          cfg,
		rateLimiter:  newRateLimiter(),
		statsCache:   cache.NewLRUCache[core.Summary](cfg.StatsCacheSize, cfg.StatsCacheTTL),
		cacheManager: cache.NewManager(),
		reqLog:       applog.NewStructuredLogger(logger),
	}

	s.cacheManager.Register(s.statsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	prefix := cfg.APIPrefix

	mux.HandleFunc("/healthz", handleLiveness)
	mux.HandleFunc("/readyz", s.handleReadiness)

	mux.HandleFunc("GET "+prefix+"/transactions", s.wrap(s.handleListTransactions))
	mux.HandleFunc("POST "+prefix+"/transactions", s.wrap(s.handleCreateTransaction))
	mux.HandleFunc("GET "+prefix+"/transactions/{id}", s.wrap(s.handleGetTransaction))
	mux.HandleFunc("PUT "+prefix+"/transactions/{id}", s.wrap(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE "+prefix+"/transactions/{id}", s.wrap(s.handleDeleteTransaction))
	mux.HandleFunc("GET "+prefix+"/statistics", s.wrap(s.handleStatistics))
	mux.HandleFunc("GET "+prefix+"/categories", s.wrap(s.handleCategories))
	mux.HandleFunc("GET "+prefix+"/export", s.wrap(s.handleExport))
	mux.HandleFunc("POST "+prefix+"/import", s.wrap(s.handleImport))
	mux.HandleFunc("GET "+prefix+"/health", s.wrap(s.handleHealth))
	mux.HandleFunc("GET "+prefix+"/config", s.wrap(s.handleConfig))

	if cfg.CORSEnabled {
		mux.HandleFunc("OPTIONS "+prefix+"/", s.handlePreflight)
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// wrap adds request tracing, security headers, CORS, rate limiting on
// mutations, and request logging around a handler.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.reqLog.LogHTTPStart(ctx, r, clientIP)

		if isMutation(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, envelope{
				Success: false,
				Error:   "rate limit exceeded, try again later",
			})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.CORSEnabled {
			w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.reqLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 mutations per minute per client
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}
