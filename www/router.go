package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"nodefleet/engine"
	"nodefleet/log"
)

// Features lists the capabilities advertised at /v1/features.
var Features = []string{"Feature 1", "Feature 2"}

type Handlers struct {
	engine   *engine.Engine
	verifier TokenVerifier
	log      zerolog.Logger
}

// NewRouter builds the HTTP API. The returned func stops the event stream hub.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		verifier: NewTokenVerifier(eng.AppConfig().Web),
		log:      log.WithComponent("www"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if origins := eng.AppConfig().Web.CORSOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         3600,
		}))
	}

	// Public routes
	r.Get("/health", h.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/features", h.handleFeatures)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Route("/clusters", func(r chi.Router) {
				r.Get("/", h.apiListClusters)
				r.Post("/", h.apiCreateCluster)
				r.Put("/", h.apiUpdateCluster)
				r.Get("/{id}", h.apiGetCluster)
				r.Delete("/{id}", h.apiDeleteCluster)
			})

			r.Route("/nodes", func(r chi.Router) {
				r.Get("/", h.apiListNodes)
				r.Post("/", h.apiCreateNode)
				r.Put("/", h.apiUpdateNode)
				r.Patch("/", h.apiPatchNodeStatus)
				r.Get("/{id}", h.apiGetNode)
				r.Delete("/{id}", h.apiDeleteNode)
			})

			r.Route("/operations", func(r chi.Router) {
				r.Post("/poweron", h.apiPowerOn)
				r.Post("/poweroff", h.apiPowerOff)
				r.Post("/reboot", h.apiReboot)
			})

			r.Get("/nodestate", h.apiNodeStates)
			r.Get("/nodestate/{id}", h.apiNodeState)
			r.Get("/events", hub.SSEHandler)
		})
	})

	return r, hub.Stop
}
