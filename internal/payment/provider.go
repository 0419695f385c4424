package payment

import (
	"context"
	"strings"
	"time"

	"profitcruiser/internal/state"
)

const (
	// KeyManual is always registered.
	KeyManual = "manual"
	// keyGeneric is the legacy generic NOWPayments key. It is never
	// registered as a provider but still resolves to a display label and
	// is tried first when the caller does not pick a payment method.
	keyGeneric = "nowpayments"

	TypeManual = "manual"
	TypeCrypto = "crypto"
)

// Request carries the order metadata a provider needs to create a payment.
type Request struct {
	OrderID   string
	Amount    float64
	Currency  string
	Product   string
	Username  string
	CreatedAt time.Time
}

// Result is the outcome of a successful payment creation: the normalized
// order status plus the payment descriptor to embed in the order.
type Result struct {
	OrderStatus string
	Payment     state.Payment
}

// Provider is one payment strategy. CreatePayment must either fully
// succeed or return an error; callers commit no state before it returns.
type Provider interface {
	Key() string
	Label() string
	Type() string
	PayCurrency() string
	SupportsRedirect() bool
	CreatePayment(ctx context.Context, req Request) (*Result, error)
}

// Descriptor is the wire representation of a registered provider.
type Descriptor struct {
	Key              string `json:"key"`
	Label            string `json:"label"`
	Type             string `json:"type"`
	PayCurrency      string `json:"payCurrency,omitempty"`
	SupportsRedirect bool   `json:"supportsRedirect"`
}

// NormalizeStatus maps the raw NOWPayments status vocabulary onto the
// internal order status. Unknown non-empty statuses pass through
// lowercased; empty maps to pending.
func NormalizeStatus(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "finished", "confirmed", "completed":
		return state.OrderStatusPaid
	case "waiting", "confirming", "sending", "partially_paid":
		return state.OrderStatusPending
	case "failed", "expired", "refunded", "chargeback":
		return state.OrderStatusFailed
	case "":
		return state.OrderStatusPending
	default:
		return normalized
	}
}

// Registry holds the provider set fixed at startup.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry registers the given providers keyed by their lowercased key.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		key := strings.ToLower(p.Key())
		if _, exists := r.providers[key]; exists {
			continue
		}
		r.providers[key] = p
		r.order = append(r.order, key)
	}
	return r
}

// Resolve looks a provider up case-insensitively.
func (r *Registry) Resolve(key string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// Fallback returns the provider used when the caller does not name one:
// the generic NOWPayments key if registered, else manual. The per-asset
// crypto providers never register under the generic key, so a
// method-less order settles manually.
func (r *Registry) Fallback() (Provider, bool) {
	if p, ok := r.providers[keyGeneric]; ok {
		return p, true
	}
	p, ok := r.providers[KeyManual]
	return p, ok
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, key := range r.order {
		p := r.providers[key]
		out = append(out, Descriptor{
			Key:              p.Key(),
			Label:            p.Label(),
			Type:             p.Type(),
			PayCurrency:      p.PayCurrency(),
			SupportsRedirect: p.SupportsRedirect(),
		})
	}
	return out
}

// Label resolves a provider key to its display label: the registered
// label when known, a fixed label for the legacy generic key, otherwise
// the key title-cased on non-alphanumeric runs.
func (r *Registry) Label(key string) string {
	if key == "" {
		return "Payment"
	}
	normalized := strings.ToLower(key)
	if r != nil {
		if p, ok := r.providers[normalized]; ok {
			return p.Label()
		}
	}
	if normalized == keyGeneric {
		return "NOWPayments"
	}
	return titleCase(key)
}

func titleCase(value string) string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

// ManualProvider settles immediately without any external call.
type ManualProvider struct{}

func (ManualProvider) Key() string            { return KeyManual }
func (ManualProvider) Label() string          { return "Manual Payment" }
func (ManualProvider) Type() string           { return TypeManual }
func (ManualProvider) PayCurrency() string    { return "" }
func (ManualProvider) SupportsRedirect() bool { return false }

// CreatePayment reports the order as paid in full on the spot.
func (ManualProvider) CreatePayment(_ context.Context, req Request) (*Result, error) {
	amount := req.Amount
	return &Result{
		OrderStatus: state.OrderStatusPaid,
		Payment: state.Payment{
			Provider:      KeyManual,
			ProviderLabel: "Manual Payment",
			Status:        state.OrderStatusPaid,
			PayCurrency:   req.Currency,
			PayAmount:     &amount,
			ActuallyPaid:  &amount,
			CreatedAt:     req.CreatedAt,
			UpdatedAt:     req.CreatedAt,
		},
	}, nil
}
