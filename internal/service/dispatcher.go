package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/interfaces"
	"github.com/turbofy/charge-engine/internal/metrics"
	"github.com/turbofy/charge-engine/internal/models"
	"github.com/turbofy/charge-engine/internal/signing"
)

const maxLoggedResponseBytes = 512

// DispatchResult summarizes one fanout: how many subscriptions were tried
// and how many accepted the event.
type DispatchResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
}

// wireBody is the JSON document merchants receive. Built once per event and
// signed per endpoint.
type wireBody struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	Version    string          `json:"version"`
	RoutingKey string          `json:"routingKey"`
	Payload    json.RawMessage `json:"payload"`
}

// Dispatcher signs and delivers platform events to merchant-registered
// endpoints. One bounded-timeout call per endpoint, no internal retry:
// merchant endpoints are not control-plane critical, so retry policy lives
// with the scheduler that replays events.
type Dispatcher struct {
	webhooks         interfaces.WebhookRepository
	client           *http.Client
	log              *zap.Logger
	suspendThreshold int
	now              func() time.Time
}

func NewDispatcher(webhooks interfaces.WebhookRepository, timeout time.Duration, suspendThreshold int, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks:         webhooks,
		client:           &http.Client{Timeout: timeout},
		log:              log,
		suspendThreshold: suspendThreshold,
		now:              time.Now,
	}
}

// Dispatch fans an event out to every ACTIVE subscription of the merchant
// that wants it. Endpoints are independent: a slow or failing one never
// blocks or fails the others.
func (d *Dispatcher) Dispatch(ctx context.Context, merchantID, eventName string, payload json.RawMessage) (DispatchResult, error) {
	subs, err := d.webhooks.ListActiveByMerchantAndEvent(ctx, merchantID, eventName)
	if err != nil {
		return DispatchResult{}, err
	}
	if len(subs) == 0 {
		return DispatchResult{}, nil
	}

	body, err := json.Marshal(wireBody{
		ID:         uuid.NewString(),
		Type:       eventName,
		Timestamp:  d.now().UTC(),
		Version:    "1",
		RoutingKey: eventName,
		Payload:    payload,
	})
	if err != nil {
		return DispatchResult{}, err
	}

	result := DispatchResult{Attempted: len(subs)}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(w *models.Webhook) {
			defer wg.Done()
			if d.deliver(ctx, w, eventName, body) {
				mu.Lock()
				result.Delivered++
				mu.Unlock()
			}
		}(sub)
	}
	wg.Wait()

	return result, nil
}

// deliver makes one signed POST and records the attempt in the immutable
// delivery log. The failure counter moves in the same repository call.
func (d *Dispatcher) deliver(ctx context.Context, w *models.Webhook, eventName string, body []byte) bool {
	ts := d.now().UnixMilli()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		d.recordAttempt(ctx, w, eventName, body, 0, "", 0, false)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signing.HeaderName, signing.Header(w.Secret, ts, body))

	start := d.now()
	resp, err := d.client.Do(req)
	latency := time.Since(start)
	metrics.DeliveryLatency.Observe(latency.Seconds())

	if err != nil {
		d.log.Warn("Webhook delivery failed",
			zap.String("webhook_id", w.ID),
			zap.String("event", eventName),
			zap.Error(err),
		)
		d.recordAttempt(ctx, w, eventName, body, 0, err.Error(), latency, false)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedResponseBytes))
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	d.recordAttempt(ctx, w, eventName, body, resp.StatusCode, string(respBody), latency, success)

	if !success {
		d.log.Warn("Webhook endpoint rejected delivery",
			zap.String("webhook_id", w.ID),
			zap.String("event", eventName),
			zap.Int("status", resp.StatusCode),
		)
	}
	return success
}

func (d *Dispatcher) recordAttempt(ctx context.Context, w *models.Webhook, eventName string, body []byte, status int, respBody string, latency time.Duration, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	metrics.OutboundDeliveries.WithLabelValues(outcome).Inc()

	err := d.webhooks.RecordDelivery(ctx, &models.WebhookLog{
		ID:           uuid.NewString(),
		WebhookID:    w.ID,
		Event:        eventName,
		Payload:      string(body),
		StatusCode:   status,
		ResponseBody: respBody,
		LatencyMS:    latency.Milliseconds(),
		Success:      success,
		Attempt:      1,
		CreatedAt:    d.now().UTC(),
	}, success, d.suspendThreshold)
	if err != nil {
		d.log.Error("Failed to record delivery attempt",
			zap.String("webhook_id", w.ID),
			zap.Error(err),
		)
	}
}
