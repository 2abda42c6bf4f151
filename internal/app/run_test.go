package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

// startServer runs the whole application in memory mode on a free port and
// returns its base URL. The server stops when the test ends.
func startServer(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := validConfig()
	cfg.Addr = addr
	cfg.APIKeyPepper = "test-pepper"
	cfg.SeedFile = filepath.Join("..", "..", "db", "seed", "fixtures.json")
	cfg.RateLimit = RateLimitConfig{Max: 1000, Window: time.Minute}
	cfg.Notify = NotifyConfig{QueueSize: 16, DeliveryTimeout: time.Second}
	cfg.Graceful = GracefulConfig{ShutdownTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, zap.NewNop(), noopTelemetry{}, &cfg) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
	return base
}

func call(t *testing.T, method, url, key string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		d := json.NewDecoder(resp.Body)
		d.UseNumber()
		var v any
		if d.Decode(&v) == nil {
			out, _ = v.(map[string]any)
		}
	}
	return resp.StatusCode, out
}

func TestRun_OrderLifecycle(t *testing.T) {
	base := startServer(t)

	status, body := call(t, http.MethodGet, base+"/livez", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = call(t, http.MethodGet, base+"/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, http.MethodGet, base+"/api/orders", "wrong-key", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	lines := []map[string]any{
		{"productId": "mill-flour-25", "quantity": 2},
		{"productId": "mill-oats-5", "quantity": 4},
	}
	status, _ = call(t, http.MethodPut, base+"/api/drafts/supplier-mill", "dev-buyer-corner",
		map[string]any{"items": lines})
	require.Equal(t, http.StatusOK, status)

	// The link to the dairy is still pending.
	status, _ = call(t, http.MethodPost, base+"/api/orders", "dev-buyer-corner",
		map[string]any{"supplierId": "supplier-dairy", "items": []map[string]any{{"productId": "dairy-milk-1", "quantity": 12}}})
	assert.Equal(t, http.StatusForbidden, status)

	status, placed := call(t, http.MethodPost, base+"/api/orders", "dev-buyer-corner",
		map[string]any{"supplierId": "supplier-mill", "items": lines})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "PLACED", placed["status"])
	assert.Equal(t, json.Number("66.80"), placed["total"])
	id, _ := placed["id"].(string)
	require.NotEmpty(t, id)

	status, _ = call(t, http.MethodGet, base+"/api/drafts/supplier-mill", "dev-buyer-corner", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Buyers cannot confirm and other suppliers cannot see the order.
	status, _ = call(t, http.MethodPost, base+"/api/orders/"+id+"/confirm", "dev-buyer-corner", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, http.MethodPost, base+"/api/orders/"+id+"/confirm", "dev-supplier-dairy", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, confirmed := call(t, http.MethodPost, base+"/api/orders/"+id+"/confirm", "dev-supplier-mill", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CONFIRMED", confirmed["status"])

	status, _ = call(t, http.MethodPost, base+"/api/orders/"+id+"/confirm", "dev-supplier-mill", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, completed := call(t, http.MethodPost, base+"/api/orders/"+id+"/complete", "dev-buyer-corner", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "COMPLETED", completed["status"])

	status, _ = call(t, http.MethodGet, base+"/api/orders/"+id, "dev-buyer-harbor", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRun_SupplierCatalog(t *testing.T) {
	base := startServer(t)

	resp, err := http.Get(base + "/api/suppliers/supplier-mill/products")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/api/suppliers/supplier-mill/products", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer dev-buyer-harbor")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var products []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	require.Len(t, products, 3)
	assert.Equal(t, "mill-flour-25", products[0]["id"])

	status, _ := call(t, http.MethodGet, base+"/api/suppliers/supplier-mill/products", "dev-supplier-dairy", nil)
	assert.Equal(t, http.StatusForbidden, status)
}
