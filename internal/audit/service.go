package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/obs"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

// Entry is one audited back-office action.
type Entry struct {
	ID           string          `json:"id"`
	BusinessID   string          `json:"businessId"`
	OperatorID   string          `json:"operatorId,omitempty"`
	Operator     string          `json:"operator,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Status       int             `json:"status"`
	IP           string          `json:"ip,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store defines the database operations required for auditing.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, businessID string, limit, offset int) ([]Entry, error)
}

// NewStore persists entries in audit_logs.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (p *pgStore) Insert(ctx context.Context, e Entry) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO audit_logs
(business_id, operator_id, operator, action, resource_type, resource_id, method, path, status, ip, request_id, metadata)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12)`,
		e.BusinessID, e.OperatorID, e.Operator, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path, e.Status,
		e.IP, e.RequestID, nullJSON(e.Metadata))
	return err
}

func (p *pgStore) List(ctx context.Context, businessID string, limit, offset int) ([]Entry, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, business_id, COALESCE(operator_id, ''), COALESCE(operator, ''), action,
resource_type, COALESCE(resource_id, ''), method, path, status, COALESCE(ip, ''), COALESCE(request_id, ''), metadata, created_at
FROM audit_logs WHERE business_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, businessID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.OperatorID, &e.Operator, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Method, &e.Path, &e.Status, &e.IP, &e.RequestID, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Metadata = meta
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// Service persists audit logs for destructive back-office flows.
type Service struct {
	Store   Store
	Enabled bool
}

// Record persists an entry built from the handled request. Requests without
// a business are not recorded.
func (s Service) Record(ctx context.Context, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	scope, err := tenant.Scope(req.Context())
	if err != nil {
		return nil
	}

	route := obs.Route(req)
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return s.Store.Insert(ctx, Entry{
		BusinessID:   scope.BusinessID,
		OperatorID:   scope.OperatorID,
		Operator:     scope.Operator,
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   strings.TrimSpace(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Status:       status,
		IP:           common.ClientIP(req),
		RequestID:    requestID(req),
		Metadata:     toJSONB(metadata, req.URL.RawQuery),
	})
}

// List returns the newest entries of a business.
func (s Service) List(ctx context.Context, businessID string, limit, offset int) ([]Entry, error) {
	if s.Store == nil {
		return nil, common.Persistence("list audit logs", errors.New("audit: store not configured"))
	}
	out, err := s.Store.List(ctx, businessID, limit, offset)
	if err != nil {
		return nil, common.Persistence("list audit logs", err)
	}
	return out, nil
}

func requestID(req *http.Request) string {
	if id := middleware.GetReqID(req.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(req.Header.Get(middleware.RequestIDHeader))
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource derives "sales.{id}" style names from /api/v1 routes.
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	return strings.Join(segments, ".")
}

func toJSONB(metadata []byte, query string) json.RawMessage {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
