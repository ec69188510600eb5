package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	// AlertSessionErrorSpike fires when session lookups keep failing,
	// which usually means the authentication service is down.
	AlertSessionErrorSpike AlertType = "session_error_spike"
	// AlertAccessDeniedSpike fires on a burst of unauthenticated requests
	// to session-gated routes.
	AlertAccessDeniedSpike AlertType = "access_denied_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

type slidingCounter struct {
	events    []time.Time
	window    time.Duration
	threshold int
}

// add records an event at now and reports the count if it reached the
// threshold. The window is cleared after firing.
func (c *slidingCounter) add(now time.Time) (int, bool) {
	c.events = append(c.events, now)
	cutoff := now.Add(-c.window)
	start := 0
	for start < len(c.events) && c.events[start].Before(cutoff) {
		start++
	}
	c.events = c.events[start:]
	if len(c.events) < c.threshold {
		return 0, false
	}
	n := len(c.events)
	c.events = c.events[:0]
	return n, true
}

// metricsCollector watches audit events for spikes.
type metricsCollector struct {
	mu sync.Mutex

	sessionErrors slidingCounter
	denials       slidingCounter

	alertFn AlertFunc
	now     func() time.Time
}

const (
	defaultSessionErrorWindow    = 1 * time.Minute
	defaultSessionErrorThreshold = 20
	defaultDenialWindow          = 1 * time.Minute
	defaultDenialThreshold       = 200
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		sessionErrors: slidingCounter{window: defaultSessionErrorWindow, threshold: defaultSessionErrorThreshold},
		denials:       slidingCounter{window: defaultDenialWindow, threshold: defaultDenialThreshold},
		alertFn:       alertFn,
		now:           time.Now,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}

	var (
		counter *slidingCounter
		typ     AlertType
		msg     string
	)
	switch event {
	case AuditSessionError:
		counter, typ, msg = &m.sessionErrors, AlertSessionErrorSpike, "session lookup failures exceed threshold"
	case AuditAccessDenied:
		counter, typ, msg = &m.denials, AlertAccessDeniedSpike, "denied requests exceed threshold"
	default:
		return
	}

	m.mu.Lock()
	now := m.now()
	count, fire := counter.add(now)
	threshold := counter.threshold
	m.mu.Unlock()

	if fire {
		m.alertFn(AlertEvent{
			Type:      typ,
			Message:   msg,
			Count:     count,
			Threshold: threshold,
			Timestamp: now,
		})
	}
}
