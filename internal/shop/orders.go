package shop

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"profitcruiser/internal/payment"
	"profitcruiser/internal/state"
)

// CreateOrderInput is the caller-provided part of a new order.
type CreateOrderInput struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Product       string  `json:"product"`
	RobuxAmount   *int    `json:"robuxAmount"`
	PaymentMethod string  `json:"paymentMethod"`
}

// OrderResult is returned from order creation. Chat is nil only when the
// auto-opener found no admin account to open a chat with.
type OrderResult struct {
	Order   state.Order    `json:"order"`
	Chat    *state.Chat    `json:"chat"`
	Payment *state.Payment `json:"payment"`
}

// CreateOrder runs the order lifecycle: resolve the provider, create the
// payment, then commit the order, its chat and the activity entries in
// one critical section with a single persist. The provider call happens
// strictly before any state mutation, so a provider failure leaves no
// partial state.
func (s *Service) CreateOrder(ctx context.Context, user state.User, in CreateOrderInput) (*OrderResult, error) {
	if in.Amount <= 0 || strings.TrimSpace(in.Product) == "" {
		return nil, ErrMissingOrderDetails
	}
	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = "EUR"
	}

	var (
		provider payment.Provider
		ok       bool
	)
	if method := strings.TrimSpace(in.PaymentMethod); method != "" {
		provider, ok = s.registry.Resolve(method)
		if !ok {
			return nil, ErrUnknownPaymentMethod
		}
	} else if provider, ok = s.registry.Fallback(); !ok {
		return nil, ErrNoProviderConfigured
	}

	orderID := s.newOrderID()
	createdAt := time.Now().UTC()

	result, err := provider.CreatePayment(ctx, payment.Request{
		OrderID:   orderID,
		Amount:    in.Amount,
		Currency:  currency,
		Product:   in.Product,
		Username:  user.Username,
		CreatedAt: createdAt,
	})
	if err != nil {
		s.logger.Error("payment creation failed", "provider", provider.Key(), "order_id", orderID, "error", err)
		if s.metrics != nil {
			s.metrics.Errors.WithLabelValues("payment_provider").Inc()
		}
		return nil, &ProviderError{Label: provider.Label(), Err: err}
	}

	pay := result.Payment
	if pay.Provider == "" {
		pay.Provider = provider.Key()
	}
	if pay.ProviderLabel == "" {
		pay.ProviderLabel = s.registry.Label(provider.Key())
	}
	orderStatus := result.OrderStatus
	if orderStatus == "" {
		orderStatus = state.OrderStatusPending
	}

	out := &OrderResult{}
	err = s.store.Update(func(doc *state.Document) error {
		order := state.Order{
			ID:          orderID,
			UserID:      user.ID,
			Username:    user.Username,
			Amount:      in.Amount,
			Currency:    currency,
			Product:     in.Product,
			RobuxAmount: in.RobuxAmount,
			Status:      orderStatus,
			CreatedAt:   createdAt,
			Payment:     &pay,
		}
		doc.Orders = append(doc.Orders, order)

		var chat *state.Chat
		if orderStatus == state.OrderStatusPaid {
			chat = s.openAdminChat(doc, &doc.Orders[len(doc.Orders)-1])
		} else {
			chat = appendPlainChat(doc, orderID, user.ID, user.Username)
		}

		pendingCurrency := pay.PayCurrency
		if pendingCurrency == "" {
			pendingCurrency = provider.PayCurrency()
		}
		if pendingCurrency == "" {
			pendingCurrency = currency
		}

		if orderStatus == state.OrderStatusPaid {
			doc.AppendActivity(fmt.Sprintf("New payment via %s from %s (%.2f %s)", pay.ProviderLabel, user.Username, in.Amount, currency))
		} else {
			doc.AppendActivity(fmt.Sprintf("Order %s awaiting payment via %s (%s) from %s", orderID, pay.ProviderLabel, strings.ToUpper(pendingCurrency), user.Username))
		}
		if pay.InvoiceURL != nil {
			doc.AppendActivity(fmt.Sprintf("%s invoice created for order %s", pay.ProviderLabel, orderID))
		}
		doc.AppendActivity(fmt.Sprintf("Chat opened (Order %s)", orderID))

		out.Order = order
		if chat != nil {
			chatCopy := *chat
			out.Chat = &chatCopy
		}
		out.Payment = &pay
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.WithLabelValues(provider.Key(), orderStatus).Inc()
	}
	return out, nil
}

// ListOrdersForUser returns the caller's orders, newest last.
func (s *Service) ListOrdersForUser(userID string) []state.Order {
	var orders []state.Order
	s.store.View(func(doc *state.Document) {
		for i := range doc.Orders {
			if doc.Orders[i].UserID == userID {
				orders = append(orders, doc.Orders[i])
			}
		}
	})
	return orders
}

// newOrderID generates a short human-readable id unique within the
// current order set. The check runs before the commit section, so two
// interleaved requests could mint the same id; with a 90k keyspace and
// a single process the window is accepted, and the chat find-or-create
// guard keeps a collision from corrupting chats.
func (s *Service) newOrderID() string {
	for {
		id := fmt.Sprintf("#%d", 10000+rand.Intn(90000))
		taken := false
		s.store.View(func(doc *state.Document) {
			taken = doc.FindOrder(id) != nil
		})
		if !taken {
			return id
		}
	}
}
