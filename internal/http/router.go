package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router wraps the standard library mux. Route grammar stays simple enough
// that a third-party router would not pay for itself.
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
	r.mux.ServeHTTP(w, req)
}

// RegisterInviteCodeRoutes wires the public validation endpoints and the
// authenticated issuer endpoints.
func (r *Router) RegisterInviteCodeRoutes(h *InviteCodeHandler, auth *AuthMiddleware) {
	r.Handle("/api/v1/invite-codes/validate", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Validate(w, req)
	})

	r.Handle("/api/v1/invite-codes/use", auth.Require(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Use(w, req)
	}))

	r.Handle("/api/v1/invite-codes", auth.Require(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			h.Create(w, req)
		case http.MethodGet:
			h.List(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	// /api/v1/invite-codes/{id}/deactivate
	r.Handle("/api/v1/invite-codes/", auth.Require(func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/api/v1/invite-codes/")
		id, ok := strings.CutSuffix(rest, "/deactivate")
		if !ok || id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Deactivate(w, req, id)
	}))
}

// RegisterClinicCodeRoutes wires admin-only clinic code management.
func (r *Router) RegisterClinicCodeRoutes(h *ClinicCodeHandler, auth *AuthMiddleware) {
	r.Handle("/api/v1/clinic-codes", auth.RequireRole(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			h.Create(w, req)
		case http.MethodGet:
			h.List(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}, "admin"))

	// /api/v1/clinic-codes/{code}/deactivate
	r.Handle("/api/v1/clinic-codes/", auth.RequireRole(func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/api/v1/clinic-codes/")
		code, ok := strings.CutSuffix(rest, "/deactivate")
		if !ok || code == "" || strings.Contains(code, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Deactivate(w, req, code)
	}, "admin"))
}

// RegisterHealthRoutes wires the liveness probe.
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
