package security

import (
	"net/http"

	"github.com/mercadoforte/backend-caixa/internal/common"
)

// BodyLimit caps request payloads. Declared oversized bodies are rejected up
// front; undeclared ones fail on read inside common.DecodeJSON.
type BodyLimit struct {
	Max int64
}

// Middleware rejects requests whose Content-Length exceeds Max with HTTP 413.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", map[string]any{"maxBytes": b.Max})
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}
