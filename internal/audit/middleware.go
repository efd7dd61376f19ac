package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mercadoforte/backend-caixa/internal/obs"
)

// HTTPRecorder records HTTP requests after they have been handled.
type HTTPRecorder struct {
	Service *Service
}

// HTTPConfig customises how the audit entry is produced for a route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(*http.Request, int) map[string]any
	// Skip, when set, drops entries for which it reports true.
	Skip func(*http.Request, int) bool
}

// Middleware returns a chi-compatible middleware that records audit entries.
// Recording failures are logged; the response has already been sent.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			recorder := obs.NewStatusRecorder(w)
			next.ServeHTTP(recorder, req)

			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			if cfg.Skip != nil && cfg.Skip(req, recorder.Status()) {
				return
			}
			var metadata []byte
			if cfg.MetadataFunc != nil {
				if payload := cfg.MetadataFunc(req, recorder.Status()); payload != nil {
					if data, err := json.Marshal(payload); err == nil {
						metadata = data
					}
				}
			}

			if err := r.Service.Record(req.Context(), cfg.Action, cfg.ResourceType, resourceID, req, recorder.Status(), metadata); err != nil {
				zerolog.Ctx(req.Context()).Warn().Err(err).Str("path", req.URL.Path).Msg("audit record failed")
			}
		})
	}
}

// Destructive records every successful DELETE below the mounted router. Route
// params are read after routing, so it can sit above the sub-routers.
func (r HTTPRecorder) Destructive() func(http.Handler) http.Handler {
	return r.Middleware(HTTPConfig{
		ResourceIDParam: "id",
		Skip: func(req *http.Request, status int) bool {
			return req.Method != http.MethodDelete || status >= http.StatusBadRequest
		},
	})
}
