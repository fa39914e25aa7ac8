package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGetJSONSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := NewClient(zaptest.NewLogger(t), Opts{
		Name:    "test",
		RPS:     100,
		Headers: map[string]string{"x-api-key": "secret"},
	})

	doc, err := c.GetJSON(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, true, doc["ok"])
}

func TestGetJSONListTopLevelArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol": "btc"}, {"symbol": "eth"}]`))
	}))
	defer srv.Close()

	c := NewClient(zaptest.NewLogger(t), Opts{Name: "test", RPS: 100})
	docs, err := c.GetJSONList(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "eth", docs[1]["symbol"])
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(zaptest.NewLogger(t), Opts{
		Name:            "flaky",
		RPS:             100,
		BreakerFailures: 3,
		BreakerCooldown: time.Hour,
	})

	for i := 0; i < 3; i++ {
		_, err := c.GetJSON(context.Background(), srv.URL)
		require.Error(t, err)
	}

	// Fourth call must be rejected without touching the upstream.
	_, err := c.GetJSON(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestCircuitBreakerRecoversAfterCooldown(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := NewClient(zaptest.NewLogger(t), Opts{
		Name:            "recovering",
		RPS:             100,
		BreakerFailures: 2,
		BreakerCooldown: 10 * time.Millisecond,
	})

	for i := 0; i < 2; i++ {
		_, err := c.GetJSON(context.Background(), srv.URL)
		require.Error(t, err)
	}

	time.Sleep(20 * time.Millisecond)

	doc, err := c.GetJSON(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, true, doc["ok"])
}
