package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okapi/internal/config"
	"okapi/internal/constants"
	"okapi/internal/logger"
	"okapi/pkg/circuitbreaker"
)

func failingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBreakerConfigAppliesOverrides(t *testing.T) {
	cfg := config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  7,
		Interval:     30 * time.Second,
		Timeout:      45 * time.Second,
		FailureRatio: 0.25,
		MinRequests:  4,
	}

	cb := breakerConfig("campaign-service", cfg)

	assert.Equal(t, uint32(7), cb.MaxRequests)
	assert.Equal(t, 30*time.Second, cb.Interval)
	assert.Equal(t, 45*time.Second, cb.Timeout)
	require.NotNil(t, cb.ReadyToTrip)
	assert.False(t, cb.ReadyToTrip(gobreaker.Counts{Requests: 3, TotalFailures: 3}))
	assert.True(t, cb.ReadyToTrip(gobreaker.Counts{Requests: 4, TotalFailures: 1}))
}

func TestBreakerConfigKeepsDefaultsWhenUnset(t *testing.T) {
	cb := breakerConfig("notifier-service", config.CircuitBreakerConfig{Enabled: true})
	def := circuitbreaker.DefaultConfig("notifier-service")

	assert.Equal(t, def.MaxRequests, cb.MaxRequests)
	assert.Equal(t, def.Interval, cb.Interval)
	assert.Equal(t, def.Timeout, cb.Timeout)
}

func TestConfiguredBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := failingServer(t, &hits)

	cbCfg := config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 1,
		MinRequests:  2,
	}
	client := NewHTTPCampaignClient(config.DispatchConfig{CampaignURL: srv.URL}, cbCfg)

	ctx := context.Background()
	require.Error(t, client.Launch(ctx, "c1", []string{"a1"}))
	require.Error(t, client.Launch(ctx, "c1", []string{"a1"}))

	err := client.Launch(ctx, "c1", []string{"a1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(2), hits.Load())
}

func TestDisabledBreakerNeverOpens(t *testing.T) {
	var hits atomic.Int32
	srv := failingServer(t, &hits)

	client := NewHTTPNotifierClient(config.DispatchConfig{NotifierURL: srv.URL}, config.CircuitBreakerConfig{Enabled: false})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		err := client.Send(ctx, "hello", []string{"a1"})
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "circuit breaker")
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestHTTPDispatcherUsesConfiguredTimeout(t *testing.T) {
	log := logger.NopLogger()
	dispatchCfg := config.DispatchConfig{}
	cbCfg := config.CircuitBreakerConfig{}

	d := NewHTTPDispatcher(dispatchCfg, cbCfg, 3*time.Second, log)
	assert.Equal(t, 3*time.Second, d.timeout)

	d = NewHTTPDispatcher(dispatchCfg, cbCfg, 0, log)
	assert.Equal(t, constants.DefaultActionTimeout, d.timeout)
}
