package tenant

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mercadoforte/backend-caixa/internal/common"
)

// Guard reconciles the resolved business with the operator token. The token's
// business wins when the request names none; a mismatch is rejected.
func Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		op, hasOp := common.OperatorFrom(ctx)
		resolved, hasTenant := From(ctx)
		switch {
		case hasOp && op.BusinessID != "" && hasTenant && !strings.EqualFold(op.BusinessID, resolved):
			common.JSONError(w, http.StatusForbidden, "TENANT_MISMATCH", "operator does not belong to this business", nil)
			return
		case !hasTenant && hasOp && op.BusinessID != "":
			ctx = With(ctx, op.BusinessID)
		case !hasTenant:
			common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "business is required", nil)
			return
		}
		annotate(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// annotate tags the request logger and span in place so the outer request
// log line and trace carry the business and operator.
func annotate(ctx context.Context) {
	business, _ := From(ctx)
	op, hasOp := common.OperatorFrom(ctx)
	zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		c = c.Str("business_id", business)
		if hasOp {
			c = c.Str("operator_id", op.ID)
		}
		return c
	})
	attrs := []attribute.KeyValue{attribute.String("caixa.business_id", business)}
	if hasOp {
		attrs = append(attrs, attribute.String("caixa.operator_id", op.ID))
	}
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// Scope builds the explicit business/operator scope for domain calls.
func Scope(ctx context.Context) (common.Scope, error) {
	businessID, ok := From(ctx)
	if !ok {
		return common.Scope{}, common.Validation("business is required", nil)
	}
	scope := common.Scope{BusinessID: businessID}
	if op, ok := common.OperatorFrom(ctx); ok {
		scope.OperatorID = op.ID
		scope.Operator = strings.TrimSpace(op.Name)
		if scope.Operator == "" {
			scope.Operator = op.ID
		}
	}
	return scope, nil
}
