package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mercadoforte/backend-caixa/internal/health"
)

type stubChecker struct {
	dbErr    error
	redisErr error
}

func (s stubChecker) PingDB(context.Context, time.Duration) error    { return s.dbErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error { return s.redisErr }

func ready(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return rr.Code, status
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReady(t *testing.T) {
	code, status := ready(t, health.Handler{Checker: stubChecker{}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]string{"db": "ok", "redis": "ok"}, status)

	code, status = ready(t, health.Handler{Checker: stubChecker{dbErr: errors.New("db down")}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "db down", status["db"])
	require.Equal(t, "ok", status["redis"])
}

func TestReadinessWhileDraining(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	health.SetReady(false)
	code, status := ready(t, health.Handler{Checker: stubChecker{}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", status["status"])
}

func TestProbesPingRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	probes := health.Probes{Redis: client}
	require.NoError(t, probes.PingRedis(context.Background(), time.Second))
	mr.Close()
	require.Error(t, probes.PingRedis(context.Background(), 100*time.Millisecond))
}
