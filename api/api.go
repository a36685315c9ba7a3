// Package api exposes the proof pipeline and the orchestrator's ledgers over
// HTTP: proof submission with polling and streaming status, quota checks,
// audit queries, dead-letter inspection and election state.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/pipeline"
	stg "github.com/victorrobotxt/toting/storage"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host     string
	Port     int
	Pipeline *pipeline.Pipeline
	Storage  *stg.Storage
}

// API type represents the API HTTP server.
type API struct {
	router   *chi.Mux
	pipeline *pipeline.Pipeline
	storage  *stg.Storage
}

// New creates a new API instance with the given configuration and starts the
// HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Pipeline == nil {
		return nil, fmt.Errorf("missing pipeline instance")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	a := &API{
		pipeline: conf.Pipeline,
		storage:  conf.Storage,
	}
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes.
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", ProofEndpoint, "method", "POST")
	a.router.Post(ProofEndpoint, a.submitProof)
	log.Infow("register handler", "endpoint", ProofJobEndpoint, "method", "GET")
	a.router.Get(ProofJobEndpoint, a.proofStatus)
	log.Infow("register handler", "endpoint", ProofStreamEndpoint, "method", "GET")
	a.router.Get(ProofStreamEndpoint, a.proofStream)
	log.Infow("register handler", "endpoint", QuotaEndpoint, "method", "GET")
	a.router.Get(QuotaEndpoint, a.quota)
	log.Infow("register handler", "endpoint", AuditsEndpoint, "method", "GET")
	a.router.Get(AuditsEndpoint, a.listAudits)
	log.Infow("register handler", "endpoint", DeadLettersEndpoint, "method", "GET")
	a.router.Get(DeadLettersEndpoint, a.listDeadLetters)
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "GET")
	a.router.Get(ElectionsEndpoint, a.listElections)
	log.Infow("register handler", "endpoint", ElectionEndpoint, "method", "GET")
	a.router.Get(ElectionEndpoint, a.election)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
