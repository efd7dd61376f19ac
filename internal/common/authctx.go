package common

import (
	"context"
	"strings"
)

type ctxKey string

const operatorKey ctxKey = "auth/operator"

// Operator identifies the signed-in cashier. It is supplied by the token
// issuer; this service never authenticates credentials itself.
type Operator struct {
	ID         string
	Name       string
	BusinessID string
}

// Scope is the explicit business/operator context every domain call runs in.
type Scope struct {
	BusinessID string
	Operator   string
	OperatorID string
}

// WithOperator stores the authenticated operator on the provided context.
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// OperatorFrom extracts the authenticated operator from the context if present.
func OperatorFrom(ctx context.Context) (Operator, bool) {
	v := ctx.Value(operatorKey)
	if v == nil {
		return Operator{}, false
	}
	op, ok := v.(Operator)
	return op, ok
}

// UserID returns the operator identifier, used by logging and auditing.
func UserID(ctx context.Context) (string, bool) {
	op, ok := OperatorFrom(ctx)
	if !ok || strings.TrimSpace(op.ID) == "" {
		return "", false
	}
	return op.ID, true
}

// Valid reports whether the scope names a business.
func (s Scope) Valid() bool {
	return strings.TrimSpace(s.BusinessID) != ""
}

// Require returns a validation error when the scope names no business.
func (s Scope) Require() error {
	if !s.Valid() {
		return Validation("business is required", nil)
	}
	return nil
}
