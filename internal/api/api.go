// Package api is the HTTP boundary: request decoding, duplicate-request
// rejection, and delegation to the processing service.
package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/tallybot/aicore/internal/service"
)

const (
	inflightCap = 1024
	inflightTTL = 2 * time.Minute
)

// Defaults are server-level pipeline settings, applied when a request leaves
// the corresponding field unset.
type Defaults struct {
	ChunkSize      int
	ChunkThreshold int
}

type API struct {
	router    *mux.Router
	processor *service.Processor
	defaults  Defaults
	logger    *slog.Logger

	// inflight holds fingerprints of conversations currently processing,
	// guarded by mu so concurrent identical requests cannot both claim the
	// same fingerprint. The TTL is a safety net so an entry never outlives a
	// crashed request.
	mu       sync.Mutex
	inflight *expirable.LRU[string, struct{}]
}

func New(processor *service.Processor, defaults Defaults, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{
		router:    mux.NewRouter(),
		processor: processor,
		defaults:  defaults,
		logger:    logger,
		inflight:  expirable.NewLRU[string, struct{}](inflightCap, nil, inflightTTL),
	}
	a.setupRoutes()
	return a
}

// acquire claims the fingerprint for this request. It returns false when an
// identical conversation is already in flight.
func (a *API) acquire(fp string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inflight.Get(fp); busy {
		return false
	}
	a.inflight.Add(fp, struct{}{})
	return true
}

func (a *API) release(fp string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight.Remove(fp)
}

func (a *API) setupRoutes() {
	a.router.HandleFunc("/api/process", a.handleProcess).Methods("POST")
	a.router.HandleFunc("/api/process-chain", a.handleProcessChain).Methods("POST")
	a.router.HandleFunc("/api/process-file", a.handleProcessFile).Methods("POST")
	a.router.HandleFunc("/api/evaluate", a.handleEvaluate).Methods("POST")
	a.router.HandleFunc("/api/settle", a.handleSettle).Methods("POST")

	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Handler returns the fully wrapped handler: CORS allow-all around request
// logging around the router.
func (a *API) Handler() http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.loggingMiddleware(a.router))
}
