package shop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"profitcruiser/internal/payment"
	"profitcruiser/internal/state"
)

// HandlePaymentEvent reconciles an order against an authenticated
// NOWPayments IPN payload. Fields absent from the payload keep their
// prior values, so replaying an event is a no-op. Events for unknown
// orders are dropped silently.
func (s *Service) HandlePaymentEvent(ctx context.Context, raw []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Warn("unparseable webhook payload", "error", err)
		payload = map[string]any{}
	}

	orderID := stringField(payload, "order_id", "orderId")
	if orderID == "" {
		s.logger.Warn("webhook payload without order id")
		return nil
	}

	known := false
	s.store.View(func(doc *state.Document) {
		known = doc.FindOrder(orderID) != nil
	})
	if !known {
		s.logger.Warn("webhook for unknown order", "order_id", orderID)
		return nil
	}

	return s.store.Update(func(doc *state.Document) error {
		order := doc.FindOrder(orderID)
		if order == nil {
			return nil
		}

		prior := order.Payment
		now := time.Now().UTC()

		next := state.Payment{
			Provider:      "nowpayments",
			ProviderLabel: s.registry.Label("nowpayments"),
			UpdatedAt:     now,
		}
		if prior != nil {
			next.InvoiceID = prior.InvoiceID
			next.InvoiceURL = prior.InvoiceURL
			next.Status = prior.Status
			next.PayCurrency = prior.PayCurrency
			next.PayAmount = prior.PayAmount
			next.ActuallyPaid = prior.ActuallyPaid
			next.CreatedAt = prior.CreatedAt
		}
		if next.CreatedAt.IsZero() {
			next.CreatedAt = order.CreatedAt
		}

		if raw := stringField(payload, "payment_status", "invoice_status"); raw != "" {
			next.Status = strings.ToLower(raw)
		} else {
			next.Status = strings.ToLower(next.Status)
		}
		if id := stringField(payload, "invoice_id", "payment_id"); id != "" {
			next.InvoiceID = &id
		}
		if url := stringField(payload, "invoice_url"); url != "" {
			next.InvoiceURL = &url
		}
		if cur := stringField(payload, "pay_currency"); cur != "" {
			next.PayCurrency = cur
		}
		if amount, ok := numberField(payload, "pay_amount"); ok {
			next.PayAmount = &amount
		}
		if paid, ok := numberField(payload, "actually_paid"); ok {
			next.ActuallyPaid = &paid
		}

		prev := order.Status
		order.Status = payment.NormalizeStatus(next.Status)
		order.Payment = &next

		label := next.ProviderLabel
		statusLabel := next.Status
		if statusLabel == "" {
			statusLabel = "unknown"
		}
		switch {
		case order.Status == state.OrderStatusPaid && prev != state.OrderStatusPaid:
			doc.AppendActivity(fmt.Sprintf("%s confirmed payment for order %s", label, order.ID))
			s.openAdminChat(doc, order)
		case order.Status == state.OrderStatusFailed && prev != state.OrderStatusFailed:
			doc.AppendActivity(fmt.Sprintf("%s marked order %s as failed (%s)", label, order.ID, statusLabel))
		default:
			doc.AppendActivity(fmt.Sprintf("%s status update for order %s: %s", label, order.ID, statusLabel))
		}
		return nil
	})
}

// stringField yields the first present key as a string, stringifying
// JSON numbers since NOWPayments sends numeric ids.
func stringField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v))
			}
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func numberField(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case string:
		var parsed float64
		if _, err := fmt.Sscanf(v, "%g", &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
