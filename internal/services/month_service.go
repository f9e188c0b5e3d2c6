// Package services provides business logic and orchestration over
// storage, FX resolution and messaging.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"finify/internal/core"
	"finify/internal/fx"
	"finify/internal/metrics"
	"finify/internal/storage"
)

// MonthPublisher announces freshly created months. Publishing is
// best-effort; a broker outage never blocks month creation.
type MonthPublisher interface {
	PublishMonthCreated(ctx context.Context, userID string, monthID int64, year, month int) error
}

// AccountPreview is one account's projected opening position for the
// month about to be created.
type AccountPreview struct {
	Account            core.Account
	CarriedNativeCents int64
	CarriedBaseCents   int64
	// LiveBaseCents revalues the carried native amount at current rates.
	// Nil when the amount is zero or no live rate could be resolved.
	LiveBaseCents *int64
}

// MonthPreview shows what EnsureMonth would freeze, without writing
// anything.
type MonthPreview struct {
	Year           int
	Month          int
	BaseCurrency   string
	Accounts       []AccountPreview
	TotalBaseCents int64
}

// MonthService runs the carry-forward engine: closing one month's
// positions into the next month's frozen opening balances.
type MonthService struct {
	store        storage.Store
	resolver     *fx.Resolver
	spot         *fx.SpotClient
	publisher    MonthPublisher
	baseCurrency string
}

func NewMonthService(store storage.Store, resolver *fx.Resolver, spot *fx.SpotClient, publisher MonthPublisher, baseCurrency string) *MonthService {
	return &MonthService{
		store:        store,
		resolver:     resolver,
		spot:         spot,
		publisher:    publisher,
		baseCurrency: baseCurrency,
	}
}

// BaseCurrency returns the user's configured base currency, falling back
// to the instance default when the user never saved settings.
func (s *MonthService) BaseCurrency(ctx context.Context, userID string) (string, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return s.baseCurrency, nil
	}
	if err != nil {
		return "", err
	}
	return settings.BaseCurrency, nil
}

// EnsureMonth creates the (year, month) row with carried-forward opening
// balances for every active account, or returns the existing row
// untouched. Safe to call repeatedly and from concurrent requests.
func (s *MonthService) EnsureMonth(ctx context.Context, userID string, year, month int) (core.Month, bool, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return core.Month{}, false, err
	}

	// Existing months are immutable; skip the balance computation.
	if existing, err := s.store.GetMonthByKey(ctx, userID, year, month); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Month{}, false, err
	}

	balances, err := s.carriedBalances(ctx, userID, core.NewMonthKey(year, month))
	if err != nil {
		return core.Month{}, false, err
	}

	created, wasCreated, err := s.store.CreateMonthWithBalances(ctx,
		core.Month{UserID: userID, Year: year, Month: month}, balances)
	if err != nil {
		return core.Month{}, false, fmt.Errorf("create month: %w", err)
	}

	if wasCreated {
		metrics.MonthsCreated.Inc()
		slog.InfoContext(ctx, "Month created",
			"user_id", userID,
			"year", year,
			"month", month,
			"accounts", len(balances))
		s.publishCreated(ctx, created)
	}

	return created, wasCreated, nil
}

// carriedBalances computes the opening position of every active account
// for the month identified by key: the previous month's frozen opening
// plus the net movements recorded during it. With no previous month
// every account starts at zero.
func (s *MonthService) carriedBalances(ctx context.Context, userID string, key core.MonthKey) ([]core.OpeningBalance, error) {
	accounts, err := s.store.ListAccounts(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	prior, err := s.store.LatestMonthBefore(ctx, userID, key)
	if errors.Is(err, core.ErrNotFound) {
		balances := make([]core.OpeningBalance, 0, len(accounts))
		for _, a := range accounts {
			balances = append(balances, core.OpeningBalance{AccountID: a.ID})
		}
		return balances, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find previous month: %w", err)
	}

	priorBalances, err := s.store.ListOpeningBalances(ctx, prior.ID)
	if err != nil {
		return nil, fmt.Errorf("list previous balances: %w", err)
	}
	opening := make(map[int64]core.OpeningBalance, len(priorBalances))
	for _, b := range priorBalances {
		opening[b.AccountID] = b
	}

	sums, err := s.store.SumMovementsByAccount(ctx, userID, prior.Start(), prior.End())
	if err != nil {
		return nil, fmt.Errorf("sum movements: %w", err)
	}

	balances := make([]core.OpeningBalance, 0, len(accounts))
	for _, a := range accounts {
		prev := opening[a.ID]
		sum := sums[a.ID]
		balances = append(balances, core.OpeningBalance{
			AccountID:       a.ID,
			AmountCents:     prev.AmountCents + sum.AmountCents,
			BaseAmountCents: prev.BaseAmountCents + sum.BaseAmountCents,
		})
	}
	return balances, nil
}

func (s *MonthService) publishCreated(ctx context.Context, m core.Month) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMonthCreated(ctx, m.UserID, m.ID, m.Year, m.Month); err != nil {
		slog.ErrorContext(ctx, "Failed to publish month created message",
			"user_id", m.UserID,
			"month_id", m.ID,
			"error", err)
		// Don't fail the request, the month is committed.
	}
}

// PreviewNextMonth computes what the month after the latest one would
// freeze as opening balances, plus a live revaluation of each position
// at current rates. Nothing is persisted.
func (s *MonthService) PreviewNextMonth(ctx context.Context, userID string) (MonthPreview, error) {
	latest, err := s.store.LatestMonth(ctx, userID)
	if err != nil {
		return MonthPreview{}, err
	}
	year, month := latest.Next()

	base, err := s.BaseCurrency(ctx, userID)
	if err != nil {
		return MonthPreview{}, err
	}

	accounts, err := s.store.ListAccounts(ctx, userID, true)
	if err != nil {
		return MonthPreview{}, fmt.Errorf("list accounts: %w", err)
	}
	balances, err := s.carriedBalances(ctx, userID, core.NewMonthKey(year, month))
	if err != nil {
		return MonthPreview{}, err
	}
	carried := make(map[int64]core.OpeningBalance, len(balances))
	for _, b := range balances {
		carried[b.AccountID] = b
	}

	preview := MonthPreview{Year: year, Month: month, BaseCurrency: base}
	preview.Accounts = make([]AccountPreview, len(accounts))
	for i, a := range accounts {
		b := carried[a.ID]
		preview.Accounts[i] = AccountPreview{
			Account:            a,
			CarriedNativeCents: b.AmountCents,
			CarriedBaseCents:   b.BaseAmountCents,
		}
		preview.TotalBaseCents += b.BaseAmountCents
	}

	s.attachLiveValues(ctx, base, preview.Accounts)
	return preview, nil
}

// attachLiveValues fills LiveBaseCents for each non-zero position using
// current rates. Repeated currencies share one lookup through the batch;
// unresolvable rates leave the overlay nil rather than failing the call.
func (s *MonthService) attachLiveValues(ctx context.Context, base string, accounts []AccountPreview) {
	batch := s.resolver.NewBatch()
	var g errgroup.Group
	g.SetLimit(4)

	for i := range accounts {
		if accounts[i].CarriedNativeCents == 0 {
			continue
		}
		g.Go(func() error {
			a := accounts[i].Account
			live, err := s.liveValue(ctx, batch, base, a, accounts[i].CarriedNativeCents)
			if err != nil {
				slog.WarnContext(ctx, "Live valuation unavailable",
					"account_id", a.ID,
					"currency", a.Currency,
					"error", err)
				return nil
			}
			accounts[i].LiveBaseCents = &live
			return nil
		})
	}
	g.Wait()
}

func (s *MonthService) liveValue(ctx context.Context, batch *fx.Batch, base string, a core.Account, nativeCents int64) (int64, error) {
	if a.Kind == core.AccountCrypto {
		price, err := s.spot.Price(ctx, a.CoinID, base)
		if err != nil {
			return 0, err
		}
		return core.ConvertCents(nativeCents, price), nil
	}

	res, err := batch.Resolve(ctx, time.Time{}, a.Currency, base)
	if err != nil {
		return 0, err
	}
	return core.ConvertCents(nativeCents, res.Rate), nil
}

// GetMonthsInRange returns the user's months between two keys,
// inclusive, in chronological order.
func (s *MonthService) GetMonthsInRange(ctx context.Context, userID string, startYear, startMonth, endYear, endMonth int) ([]core.Month, error) {
	if err := core.ValidateYearMonth(startYear, startMonth); err != nil {
		return nil, err
	}
	if err := core.ValidateYearMonth(endYear, endMonth); err != nil {
		return nil, err
	}
	start := core.NewMonthKey(startYear, startMonth)
	end := core.NewMonthKey(endYear, endMonth)
	if start > end {
		return nil, core.ErrInvalidRange
	}
	return s.store.MonthsInRange(ctx, userID, start, end)
}
