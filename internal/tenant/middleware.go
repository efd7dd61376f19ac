package tenant

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey struct{}

// DefaultHeader carries the business id when the deployment serves more than one store.
const DefaultHeader = "X-Business-ID"

// Resolver picks the business a request acts on: the configured header first,
// then the deployment default. Single-store installs only set the default.
type Resolver struct {
	Header  string
	Default string
}

func NewResolver(header, fallback string) *Resolver {
	header = strings.TrimSpace(header)
	if header == "" {
		header = DefaultHeader
	}
	return &Resolver{Header: header, Default: strings.TrimSpace(fallback)}
}

// Middleware stores the resolved business in the request context. Requests
// that resolve to nothing pass through untouched so Guard can fall back to
// the operator token.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if id := r.Resolve(req); id != "" {
			req = req.WithContext(With(req.Context(), id))
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := strings.TrimSpace(req.Header.Get(r.Header)); id != "" {
		return id
	}
	return r.Default
}

// With stores the business id in ctx.
func With(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(id))
}

// From returns the business id stored by With.
func From(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id, id != ""
}

// PrefixKey namespaces a cache or lock key per business.
func PrefixKey(businessID, key string) string {
	if businessID == "" {
		return key
	}
	return businessID + ":" + key
}
