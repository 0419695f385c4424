package shop

import (
	"log/slog"

	"profitcruiser/internal/metrics"
	"profitcruiser/internal/payment"
	"profitcruiser/internal/state"
)

// Service implements the order lifecycle, webhook reconciliation, chats
// and the admin back-office against the shared state store.
type Service struct {
	store    *state.Store
	registry *payment.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates the storefront service.
func New(store *state.Store, registry *payment.Registry, logger *slog.Logger, metricRegistry *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		registry: registry,
		logger:   logger.With("component", "shop"),
		metrics:  metricRegistry,
	}
}

// Providers lists the registered payment providers.
func (s *Service) Providers() []payment.Descriptor {
	return s.registry.List()
}

// EnsurePaymentShapes backfills payment records persisted by older
// versions: missing provider labels are resolved once at startup instead
// of defensively at every call site.
func (s *Service) EnsurePaymentShapes() error {
	changed := false
	s.store.View(func(doc *state.Document) {
		for i := range doc.Orders {
			p := doc.Orders[i].Payment
			if p != nil && p.ProviderLabel == "" {
				changed = true
				return
			}
		}
	})
	if !changed {
		return nil
	}
	return s.store.Update(func(doc *state.Document) error {
		for i := range doc.Orders {
			p := doc.Orders[i].Payment
			if p != nil && p.ProviderLabel == "" {
				p.ProviderLabel = s.registry.Label(p.Provider)
			}
		}
		return nil
	})
}
