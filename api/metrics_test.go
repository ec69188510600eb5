package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/registrar/session"
)

func newTestCollector(alerts *[]AlertEvent) (*metricsCollector, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newMetricsCollector(func(e AlertEvent) { *alerts = append(*alerts, e) })
	c.now = clock.now
	return c, clock
}

func TestSessionErrorSpikeAlert(t *testing.T) {
	var alerts []AlertEvent
	c, _ := newTestCollector(&alerts)
	c.sessionErrors.threshold = 5

	for i := 0; i < 4; i++ {
		c.recordEvent(AuditSessionError)
	}
	assert.Empty(t, alerts, "no alert below threshold")

	c.recordEvent(AuditSessionError)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSessionErrorSpike, alerts[0].Type)
	assert.Equal(t, 5, alerts[0].Count)
	assert.Equal(t, 5, alerts[0].Threshold)
}

func TestAccessDeniedSpikeAlert(t *testing.T) {
	var alerts []AlertEvent
	c, _ := newTestCollector(&alerts)
	c.denials.threshold = 3

	for i := 0; i < 3; i++ {
		c.recordEvent(AuditAccessDenied)
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertAccessDeniedSpike, alerts[0].Type)
}

func TestMetricsIgnoresOtherEvents(t *testing.T) {
	var alerts []AlertEvent
	c, _ := newTestCollector(&alerts)
	c.sessionErrors.threshold = 1
	c.denials.threshold = 1

	c.recordEvent(AuditSessionResolved)
	c.recordEvent(AuditRateLimited)
	assert.Empty(t, alerts)
}

func TestMetricsNilCollector(t *testing.T) {
	var collector *metricsCollector
	collector.recordEvent(AuditSessionError)
	newMetricsCollector(nil).recordEvent(AuditSessionError)
}

func TestMetricsSlidingWindowExpiry(t *testing.T) {
	var alerts []AlertEvent
	c, clock := newTestCollector(&alerts)
	c.sessionErrors.threshold = 5

	for i := 0; i < 4; i++ {
		c.recordEvent(AuditSessionError)
	}
	clock.advance(defaultSessionErrorWindow + time.Second)

	c.recordEvent(AuditSessionError)
	assert.Empty(t, alerts, "old failures should not count after window expiry")
}

func TestMetricsResetAfterAlert(t *testing.T) {
	var alerts []AlertEvent
	c, _ := newTestCollector(&alerts)
	c.sessionErrors.threshold = 3

	for i := 0; i < 3; i++ {
		c.recordEvent(AuditSessionError)
	}
	require.Len(t, alerts, 1)

	for i := 0; i < 2; i++ {
		c.recordEvent(AuditSessionError)
	}
	assert.Len(t, alerts, 1, "no second alert yet")

	c.recordEvent(AuditSessionError)
	assert.Len(t, alerts, 2)
}

func TestAuditLogFeedsAlerts(t *testing.T) {
	var (
		buf    bytes.Buffer
		alerts []AlertEvent
	)
	a := New[session.NoFields](&noSessionDelegate{},
		WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))),
		WithAlertFunc(func(e AlertEvent) { alerts = append(alerts, e) }),
	)
	a.audit.metrics.denials.threshold = 2

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		a.Router().ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertAccessDeniedSpike, alerts[0].Type)

	var entry map[string]any
	line, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	require.NoError(t, json.Unmarshal(line, &entry))
	assert.Equal(t, "audit", entry["component"])
	assert.Equal(t, string(AuditAccessDenied), entry["event"])
	assert.Equal(t, "no session", entry["reason"])
}
