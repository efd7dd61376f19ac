package cache

import (
	"strings"

	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

// Key builds a per-business cache key from its parts.
func Key(businessID string, parts ...string) string {
	return tenant.PrefixKey(businessID, strings.Join(parts, ":"))
}

// ProductCode is the key for a code lookup.
func ProductCode(businessID, code string) string {
	return Key(businessID, "catalog", "code", strings.ToLower(strings.TrimSpace(code)))
}

// ProductSearch is the key for a search result page.
func ProductSearch(businessID, term string) string {
	return Key(businessID, "catalog", "search", strings.ToLower(strings.TrimSpace(term)))
}

// CatalogPrefix covers every catalog entry of a business.
func CatalogPrefix(businessID string) string {
	return Key(businessID, "catalog") + ":"
}

// ReportPrefix covers every cached report of a business.
func ReportPrefix(businessID string) string {
	return Key(businessID, "report") + ":"
}

// Settings is the key for business settings.
func Settings(businessID string) string {
	return Key(businessID, "settings")
}
