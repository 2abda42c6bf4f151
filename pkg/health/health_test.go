package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probe(t *testing.T, fn http.HandlerFunc) (int, probeBody) {
	t.Helper()

	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body probeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestLivez_NoChecks(t *testing.T) {
	h := New()
	code, body := probe(t, h.Livez)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestCheck_FailureThreshold(t *testing.T) {
	h := New()
	h.Add(Liveness, "db", failing("connection refused"))
	c := h.checks[0]
	ctx := context.Background()

	c.run(ctx)
	c.run(ctx)
	code, _ := probe(t, h.Livez)
	assert.Equal(t, http.StatusOK, code)

	c.run(ctx)
	code, body := probe(t, h.Livez)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestCheck_Recovery(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	h := New()
	h.Add(Readiness, "cache", func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}, WithThresholds(1, 2))
	h.SetReady(true)
	c := h.checks[0]
	ctx := context.Background()

	c.run(ctx)
	assert.False(t, h.IsReady())

	fail.Store(false)
	c.run(ctx)
	assert.False(t, h.IsReady())
	c.run(ctx)
	assert.True(t, h.IsReady())
}

func TestReadyz(t *testing.T) {
	h := New()
	h.Add(Readiness, "postgres", failing("timeout"), WithThresholds(1, 1))
	h.Add(Liveness, "goroutines", failing("leak"), WithThresholds(1, 1))

	code, body := probe(t, h.Readyz)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])

	h.SetReady(true)
	code, _ = probe(t, h.Readyz)
	assert.Equal(t, http.StatusOK, code)

	for _, c := range h.checks {
		c.run(context.Background())
	}
	code, body = probe(t, h.Readyz)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"postgres": "timeout"}, body.Checks)

	// Liveness failures do not affect readiness and vice versa.
	_, body = probe(t, h.Livez)
	assert.Equal(t, map[string]string{"goroutines": "leak"}, body.Checks)
}

func TestStartAndStop(t *testing.T) {
	var runs atomic.Int32
	h := New()
	h.Add(Readiness, "counter", func(context.Context) error {
		runs.Add(1)
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
	time.Sleep(30 * time.Millisecond)
	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), after+1)
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.Add(Readiness, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(10*time.Millisecond), WithThresholds(1, 1))
	h.SetReady(true)

	h.checks[0].run(context.Background())
	assert.False(t, h.IsReady())
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(fakePinger{})(context.Background()))
	assert.ErrorContains(t, PingCheck(fakePinger{err: errors.New("refused")})(context.Background()), "refused")
}

func TestKafkaCheck_NoBrokers(t *testing.T) {
	assert.Error(t, KafkaCheck(nil)(context.Background()))
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestMount(t *testing.T) {
	h := New()
	h.SetReady(true)
	mux := http.NewServeMux()
	h.Mount(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
