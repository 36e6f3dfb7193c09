// Package httpapi serves the live and read-only HTTP surface of the monitor.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Router uses http.ServeMux to keep routing free of third-party dependencies.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	r.mux.ServeHTTP(w, req)
	r.logger.Debug("HTTP request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// RegisterHealthRoutes registers /healthz.
func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Health(w, req)
	})
}

// RegisterPetRoutes registers the per-pet live stream and read endpoints:
//
//	GET /ws/pets/{petId}
//	GET /api/v1/pets/{petId}/realtime
//	GET /api/v1/pets/{petId}/alerts?limit=
func (r *Router) RegisterPetRoutes(p *PetHandler) {
	r.Handle("/ws/pets/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		petID := strings.TrimPrefix(req.URL.Path, "/ws/pets/")
		if petID == "" || strings.Contains(petID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		p.Live(w, req, petID)
	})

	r.Handle("/api/v1/pets/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rest := strings.TrimPrefix(req.URL.Path, "/api/v1/pets/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch parts[1] {
		case "realtime":
			p.Realtime(w, req, parts[0])
		case "alerts":
			p.Alerts(w, req, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}
