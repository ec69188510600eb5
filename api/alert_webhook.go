package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// alertQueueSize is the bounded channel capacity for outbound alerts.
const alertQueueSize = 256

// AlertWebhook posts alerts to an external HTTP endpoint. Alerts are
// queued without blocking and sent by a background goroutine; when the
// queue is full they are dropped.
type AlertWebhook struct {
	url        string
	authHeader string // "Header: Value", e.g. "Authorization: Bearer xxx"
	client     *http.Client
	logger     *slog.Logger
	retryDelay time.Duration

	mu     sync.RWMutex
	closed bool
	events chan AlertEvent
	wg     sync.WaitGroup
}

// NewAlertWebhook starts a dispatcher posting to url. Its Notify method
// is meant to be passed to WithAlertFunc. Close it on shutdown.
func NewAlertWebhook(url, authHeader string, logger *slog.Logger) *AlertWebhook {
	if logger == nil {
		logger = slog.Default()
	}
	w := &AlertWebhook{
		url:        url,
		authHeader: authHeader,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With("component", "alert_webhook"),
		retryDelay: time.Second,
		events:     make(chan AlertEvent, alertQueueSize),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Notify queues an alert. It never blocks.
func (w *AlertWebhook) Notify(evt AlertEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.events <- evt:
	default:
		w.logger.Warn("queue full, dropping alert", "type", evt.Type)
	}
}

// Close stops accepting alerts and waits for queued ones to be sent.
func (w *AlertWebhook) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.events)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *AlertWebhook) loop() {
	defer w.wg.Done()
	for evt := range w.events {
		w.send(evt)
	}
}

// send POSTs the alert with one retry on 5xx or transport errors.
func (w *AlertWebhook) send(evt AlertEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		w.logger.Warn("marshal failed", "error", err)
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(w.retryDelay)
		}

		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			w.logger.Warn("request creation failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Registrar-Alert-Webhook/1.0")
		if name, value, ok := strings.Cut(w.authHeader, ":"); ok {
			req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
		}

		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Warn("request failed", "error", err, "attempt", attempt+1)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return
		case resp.StatusCode >= 500:
			w.logger.Warn("server error", "status", resp.StatusCode, "attempt", attempt+1)
			continue
		default:
			w.logger.Warn("client error", "status", resp.StatusCode)
			return
		}
	}
}
