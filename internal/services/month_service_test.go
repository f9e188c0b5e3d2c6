package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finify/internal/core"
	"finify/internal/fx"
)

type stubProvider struct {
	rates map[string]decimal.Decimal
	calls atomic.Int64
	err   error
}

func (p *stubProvider) FetchRate(_ context.Context, _ time.Time, from, to string) (decimal.Decimal, error) {
	p.calls.Add(1)
	if p.err != nil {
		return decimal.Decimal{}, p.err
	}
	rate, ok := p.rates[from+"/"+to]
	if !ok {
		return decimal.Decimal{}, fx.ErrRateUnavailable
	}
	return rate, nil
}

type recordingPublisher struct {
	published atomic.Int64
	err       error
}

func (p *recordingPublisher) PublishMonthCreated(context.Context, string, int64, int, int) error {
	p.published.Add(1)
	return p.err
}

func newTestMonthService(store *fakeStore, provider fx.Provider, pub MonthPublisher) *MonthService {
	if provider == nil {
		provider = &stubProvider{}
	}
	resolver := fx.NewResolver(store, provider, "default", time.Second)
	return NewMonthService(store, resolver, nil, pub, "EUR")
}

func addAccount(t *testing.T, store *fakeStore, userID, name, currency string, active bool) core.Account {
	t.Helper()
	a, err := store.CreateAccount(context.Background(), core.Account{
		UserID: userID, Name: name, Currency: currency, Kind: core.AccountBank, Active: active,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func addMovement(t *testing.T, store *fakeStore, userID string, accountID int64, occurredAt time.Time, cents int64) {
	t.Helper()
	_, err := store.CreateTransaction(context.Background(),
		core.Transaction{UserID: userID, OccurredAt: occurredAt},
		[]core.Movement{{AccountID: accountID, AmountCents: cents, Rate: decimal.NewFromInt(1), BaseAmountCents: cents}})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
}

func TestEnsureMonthSeedsActiveAccountsAtZero(t *testing.T) {
	store := newFakeStore()
	svc := newTestMonthService(store, nil, nil)
	ctx := context.Background()

	checking := addAccount(t, store, "u1", "Checking", "EUR", true)
	savings := addAccount(t, store, "u1", "Savings", "EUR", true)
	addAccount(t, store, "u1", "Closed", "EUR", false)

	month, created, err := svc.EnsureMonth(ctx, "u1", 2024, 3)
	if err != nil {
		t.Fatalf("ensure month: %v", err)
	}
	if !created {
		t.Fatal("first call should create the month")
	}

	balances, err := store.ListOpeningBalances(ctx, month.ID)
	if err != nil {
		t.Fatalf("list balances: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("balances = %d rows, want 2 (inactive account excluded)", len(balances))
	}
	for _, b := range balances {
		if b.AmountCents != 0 || b.BaseAmountCents != 0 {
			t.Errorf("first month balance should be zero, got %+v", b)
		}
		if b.AccountID != checking.ID && b.AccountID != savings.ID {
			t.Errorf("unexpected account %d in balances", b.AccountID)
		}
	}
}

func TestEnsureMonthCarriesForward(t *testing.T) {
	store := newFakeStore()
	svc := newTestMonthService(store, nil, nil)
	ctx := context.Background()

	acc := addAccount(t, store, "u1", "Checking", "EUR", true)

	if _, _, err := svc.EnsureMonth(ctx, "u1", 2024, 3); err != nil {
		t.Fatalf("ensure march: %v", err)
	}
	addMovement(t, store, "u1", acc.ID, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), 10000)
	addMovement(t, store, "u1", acc.ID, time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC), 5000)
	addMovement(t, store, "u1", acc.ID, time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC), -2000)
	// April activity must not leak into April's opening.
	addMovement(t, store, "u1", acc.ID, time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC), -99999)

	april, created, err := svc.EnsureMonth(ctx, "u1", 2024, 4)
	if err != nil {
		t.Fatalf("ensure april: %v", err)
	}
	if !created {
		t.Fatal("april should be created")
	}

	balances, _ := store.ListOpeningBalances(ctx, april.ID)
	if len(balances) != 1 {
		t.Fatalf("balances = %d rows, want 1", len(balances))
	}
	if balances[0].AmountCents != 13000 {
		t.Errorf("april opening = %d, want 13000", balances[0].AmountCents)
	}
	if balances[0].BaseAmountCents != 13000 {
		t.Errorf("april base opening = %d, want 13000", balances[0].BaseAmountCents)
	}
}

func TestEnsureMonthIdempotent(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{}
	svc := newTestMonthService(store, nil, pub)
	ctx := context.Background()

	acc := addAccount(t, store, "u1", "Checking", "EUR", true)

	first, created, err := svc.EnsureMonth(ctx, "u1", 2024, 3)
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}

	// Movements recorded after creation must not rewrite the frozen seed.
	addMovement(t, store, "u1", acc.ID, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), 7777)

	second, created, err := svc.EnsureMonth(ctx, "u1", 2024, 3)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if created {
		t.Error("second ensure should not create")
	}
	if second.ID != first.ID {
		t.Errorf("second ensure returned month %d, want %d", second.ID, first.ID)
	}

	balances, _ := store.ListOpeningBalances(ctx, first.ID)
	if len(balances) != 1 || balances[0].AmountCents != 0 {
		t.Errorf("balances = %+v, frozen seed should be untouched", balances)
	}
	if got := pub.published.Load(); got != 1 {
		t.Errorf("published = %d events, want 1", got)
	}
}

func TestEnsureMonthPublishFailureIsSoft(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestMonthService(store, nil, pub)

	_, created, err := svc.EnsureMonth(context.Background(), "u1", 2024, 3)
	if err != nil {
		t.Fatalf("ensure month: %v", err)
	}
	if !created {
		t.Error("month should be created even when publishing fails")
	}
}

func TestEnsureMonthValidation(t *testing.T) {
	svc := newTestMonthService(newFakeStore(), nil, nil)

	if _, _, err := svc.EnsureMonth(context.Background(), "u1", 2024, 13); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("month 13 should be rejected, got %v", err)
	}
	if _, _, err := svc.EnsureMonth(context.Background(), "u1", 1969, 1); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("year 1969 should be rejected, got %v", err)
	}
}

func TestGetMonthsInRange(t *testing.T) {
	store := newFakeStore()
	svc := newTestMonthService(store, nil, nil)
	ctx := context.Background()

	for _, m := range []int{1, 2, 3} {
		if _, _, err := svc.EnsureMonth(ctx, "u1", 2024, m); err != nil {
			t.Fatalf("ensure 2024-%02d: %v", m, err)
		}
	}

	months, err := svc.GetMonthsInRange(ctx, "u1", 2024, 1, 2024, 2)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(months) != 2 {
		t.Errorf("months = %d, want 2", len(months))
	}

	if _, err := svc.GetMonthsInRange(ctx, "u1", 2024, 3, 2024, 1); !errors.Is(err, core.ErrInvalidRange) {
		t.Errorf("reversed range should be rejected, got %v", err)
	}
	if _, err := svc.GetMonthsInRange(ctx, "u1", 2024, 0, 2024, 1); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("month 0 should be rejected, got %v", err)
	}
}

func TestPreviewNextMonth(t *testing.T) {
	store := newFakeStore()
	provider := &stubProvider{rates: map[string]decimal.Decimal{
		"USD/EUR": decimal.RequireFromString("0.5"),
	}}
	svc := newTestMonthService(store, provider, nil)
	ctx := context.Background()

	eur := addAccount(t, store, "u1", "Checking", "EUR", true)
	usd := addAccount(t, store, "u1", "Broker", "USD", true)

	if _, _, err := svc.EnsureMonth(ctx, "u1", 2024, 3); err != nil {
		t.Fatalf("ensure march: %v", err)
	}
	addMovement(t, store, "u1", eur.ID, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), 10000)
	addMovement(t, store, "u1", usd.ID, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), 5000)

	preview, err := svc.PreviewNextMonth(ctx, "u1")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Year != 2024 || preview.Month != 4 {
		t.Errorf("preview targets %d-%02d, want 2024-04", preview.Year, preview.Month)
	}
	if len(preview.Accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(preview.Accounts))
	}

	byID := map[int64]AccountPreview{}
	for _, ap := range preview.Accounts {
		byID[ap.Account.ID] = ap
	}

	if got := byID[eur.ID].CarriedNativeCents; got != 10000 {
		t.Errorf("eur carried = %d, want 10000", got)
	}
	if live := byID[eur.ID].LiveBaseCents; live == nil || *live != 10000 {
		t.Errorf("eur live = %v, want 10000 (identity)", live)
	}
	if got := byID[usd.ID].CarriedNativeCents; got != 5000 {
		t.Errorf("usd carried = %d, want 5000", got)
	}
	if live := byID[usd.ID].LiveBaseCents; live == nil || *live != 2500 {
		t.Errorf("usd live = %v, want 2500 at rate 0.5", live)
	}
}

func TestPreviewLiveValuesFollowRateChanges(t *testing.T) {
	store := newFakeStore()
	provider := &stubProvider{rates: map[string]decimal.Decimal{
		"USD/EUR": decimal.RequireFromString("0.5"),
	}}
	svc := newTestMonthService(store, provider, nil)
	ctx := context.Background()

	usd := addAccount(t, store, "u1", "Broker", "USD", true)
	if _, _, err := svc.EnsureMonth(ctx, "u1", 2024, 3); err != nil {
		t.Fatalf("ensure march: %v", err)
	}
	addMovement(t, store, "u1", usd.ID, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), 5000)

	first, err := svc.PreviewNextMonth(ctx, "u1")
	if err != nil {
		t.Fatalf("first preview: %v", err)
	}
	if lv := first.Accounts[0].LiveBaseCents; lv == nil || *lv != 2500 {
		t.Fatalf("first live value = %v, want 2500", lv)
	}

	// The market moved; the next preview must revalue at the new rate,
	// not replay the first fetch.
	provider.rates["USD/EUR"] = decimal.RequireFromString("2")

	second, err := svc.PreviewNextMonth(ctx, "u1")
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if lv := second.Accounts[0].LiveBaseCents; lv == nil || *lv != 20000 {
		t.Errorf("second live value = %v, want 20000", lv)
	}
	if got := provider.calls.Load(); got != 2 {
		t.Errorf("provider calls = %d, want 2 (one per preview)", got)
	}
}

func TestPreviewNextMonthRateFailureIsSoft(t *testing.T) {
	store := newFakeStore()
	provider := &stubProvider{err: fx.ErrRateUnavailable}
	svc := newTestMonthService(store, provider, nil)
	ctx := context.Background()

	usd := addAccount(t, store, "u1", "Broker", "USD", true)
	if _, _, err := svc.EnsureMonth(ctx, "u1", 2024, 3); err != nil {
		t.Fatalf("ensure march: %v", err)
	}
	addMovement(t, store, "u1", usd.ID, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), 5000)

	preview, err := svc.PreviewNextMonth(ctx, "u1")
	if err != nil {
		t.Fatalf("preview should not fail on rate errors: %v", err)
	}
	if len(preview.Accounts) != 1 {
		t.Fatalf("accounts = %d, want 1", len(preview.Accounts))
	}
	if preview.Accounts[0].LiveBaseCents != nil {
		t.Error("live overlay should be nil when the rate is unavailable")
	}
	if preview.Accounts[0].CarriedBaseCents != 5000 {
		t.Errorf("frozen base = %d, want 5000", preview.Accounts[0].CarriedBaseCents)
	}
}

func TestPreviewNextMonthNoHistory(t *testing.T) {
	svc := newTestMonthService(newFakeStore(), nil, nil)

	if _, err := svc.PreviewNextMonth(context.Background(), "u1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("preview without months should be ErrNotFound, got %v", err)
	}
}

func TestBaseCurrencyFallsBackToDefault(t *testing.T) {
	store := newFakeStore()
	svc := newTestMonthService(store, nil, nil)
	ctx := context.Background()

	base, err := svc.BaseCurrency(ctx, "u1")
	if err != nil {
		t.Fatalf("base currency: %v", err)
	}
	if base != "EUR" {
		t.Errorf("default base = %s, want EUR", base)
	}

	if err := store.PutSettings(ctx, core.Settings{UserID: "u1", BaseCurrency: "USD"}); err != nil {
		t.Fatalf("put settings: %v", err)
	}
	base, err = svc.BaseCurrency(ctx, "u1")
	if err != nil {
		t.Fatalf("base currency: %v", err)
	}
	if base != "USD" {
		t.Errorf("stored base = %s, want USD", base)
	}
}
