package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"profitcruiser/internal/metrics"
)

// Processor receives verified webhook payloads.
type Processor interface {
	HandlePaymentEvent(ctx context.Context, payload []byte) error
}

// WebhookHandler verifies NOWPayments IPN signatures and forwards the
// raw payload. It acknowledges quickly in every case except a signature
// failure: the provider retries on anything else.
type WebhookHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	ipnSecret string
	enabled   bool
	processor Processor
}

// NewWebhookHandler creates the IPN endpoint handler. When enabled is
// false the endpoint is a no-op sink.
func NewWebhookHandler(logger *slog.Logger, metrics *metrics.Metrics, ipnSecret string, enabled bool, processor Processor) *WebhookHandler {
	return &WebhookHandler{
		logger:    logger.With("component", "nowpayments_webhook"),
		metrics:   metrics,
		ipnSecret: ipnSecret,
		enabled:   enabled,
		processor: processor,
	}
}

// ServeHTTP satisfies http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.enabled {
		h.count("disabled")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.count("read_error")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		h.count("empty")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// The body is not parsed or acted on before the signature checks out.
	if !h.verifySignature(r, body) {
		h.count("bad_signature")
		if h.metrics != nil {
			h.metrics.Errors.WithLabelValues("nowpayments_webhook_auth").Inc()
		}
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if h.processor != nil {
		if err := h.processor.HandlePaymentEvent(r.Context(), body); err != nil {
			// Anomalies past the signature gate are swallowed so the
			// provider does not retry forever.
			h.logger.Error("failed processing webhook", "error", err)
			h.count("process_error")
			if h.metrics != nil {
				h.metrics.Errors.WithLabelValues("nowpayments_webhook").Inc()
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	h.count("ok")
	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) verifySignature(r *http.Request, body []byte) bool {
	signature := strings.TrimSpace(r.Header.Get("x-nowpayments-sig"))
	if signature == "" {
		signature = strings.TrimSpace(r.Header.Get("x-nowpayments-signature"))
	}
	if signature == "" || h.ipnSecret == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(h.ipnSecret))
	mac.Write(body)
	digest := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(digest), []byte(strings.ToLower(signature)))
}

func (h *WebhookHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(outcome).Inc()
	}
}
