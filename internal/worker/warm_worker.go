// Package worker runs the background consumers behind the API: today
// that is the FX warm worker, which pre-resolves the rates a freshly
// created month will need so dashboard reads hit the persisted cache.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finify/internal/amqp"
	"finify/internal/core"
	"finify/internal/fx"
	"finify/internal/storage"
)

// WarmWorker consumes month-created events and resolves the rate of
// every active account currency against the user's base currency for
// the month's start date, filling the persisted cache ahead of demand.
type WarmWorker struct {
	store        storage.Store
	resolver     *fx.Resolver
	baseCurrency string
}

func NewWarmWorker(store storage.Store, resolver *fx.Resolver, baseCurrency string) *WarmWorker {
	return &WarmWorker{
		store:        store,
		resolver:     resolver,
		baseCurrency: baseCurrency,
	}
}

// HandleMonthCreated warms the rate cache for one month-created event.
// Individual rate failures are logged and skipped; the event is only
// retried for storage-level errors.
func (w *WarmWorker) HandleMonthCreated(ctx context.Context, msg *amqp.MonthCreatedMessage) error {
	month, err := w.store.GetMonth(ctx, msg.UserID, msg.MonthID)
	if err != nil {
		return fmt.Errorf("get month %d: %w", msg.MonthID, err)
	}

	base := w.baseCurrency
	if settings, err := w.store.GetSettings(ctx, msg.UserID); err == nil {
		base = settings.BaseCurrency
	}

	currencies, err := w.activeCurrencies(ctx, msg.UserID)
	if err != nil {
		return err
	}

	warmed := 0
	for _, currency := range currencies {
		if currency == base {
			continue
		}
		if _, err := w.resolver.Resolve(ctx, month.Start(), currency, base); err != nil {
			slog.WarnContext(ctx, "Rate warm-up failed",
				"currency", currency,
				"base", base,
				"month_id", month.ID,
				"error", err)
			continue
		}
		warmed++
	}

	slog.InfoContext(ctx, "Warmed FX cache for month",
		"user_id", msg.UserID,
		"month_id", month.ID,
		"currencies", len(currencies),
		"warmed", warmed)
	return nil
}

// activeCurrencies returns the distinct fiat currencies of the user's
// active accounts. Crypto accounts price through the spot provider and
// have nothing to warm here.
func (w *WarmWorker) activeCurrencies(ctx context.Context, userID string) ([]string, error) {
	accounts, err := w.store.ListAccounts(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	seen := make(map[string]bool)
	var currencies []string
	for _, a := range accounts {
		if a.Kind == core.AccountCrypto || seen[a.Currency] {
			continue
		}
		seen[a.Currency] = true
		currencies = append(currencies, a.Currency)
	}
	return currencies, nil
}
