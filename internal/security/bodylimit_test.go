package security

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/common"
)

type payload struct {
	Name string `json:"name"`
}

func decodeHandler(t *testing.T, got *payload) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := common.DecodeJSON(r, got); err != nil {
			common.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	var got payload
	handler := BodyLimit{Max: 64}.Middleware(decodeHandler(t, &got))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sales/session/client", strings.NewReader(`{"name":"Maria"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Maria", got.Name)
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	handler := BodyLimit{Max: 5}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader("content"))
	req.ContentLength = 100
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "PAYLOAD_TOO_LARGE", body.Error.Code)
}

func TestBodyLimitRejectsUndeclaredOversizedBody(t *testing.T) {
	var got payload
	handler := BodyLimit{Max: 8}.Middleware(decodeHandler(t, &got))

	req := httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader(`{"name":"a very long client name"}`))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
