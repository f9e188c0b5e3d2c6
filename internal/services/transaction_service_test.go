package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finify/internal/core"
	"finify/internal/fx"
)

func newTestTransactionService(store *fakeStore, provider fx.Provider) (*TransactionService, *MonthService) {
	months := newTestMonthService(store, provider, nil)
	if provider == nil {
		provider = &stubProvider{}
	}
	resolver := fx.NewResolver(store, provider, "default", time.Second)
	return NewTransactionService(store, resolver, nil, months), months
}

func TestCreateTransactionFreezesBaseAmount(t *testing.T) {
	store := newFakeStore()
	provider := &stubProvider{rates: map[string]decimal.Decimal{
		"USD/EUR": decimal.RequireFromString("0.9"),
	}}
	svc, _ := newTestTransactionService(store, provider)
	ctx := context.Background()

	usd := addAccount(t, store, "u1", "Broker", "USD", true)

	res, err := svc.CreateTransaction(ctx, "u1", TransactionInput{
		Note:       "dividend",
		OccurredAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Movements:  []MovementInput{{AccountID: usd.ID, AmountCents: 10000}},
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if len(res.Movements) != 1 {
		t.Fatalf("movements = %d, want 1", len(res.Movements))
	}
	m := res.Movements[0]
	if !m.Rate.Equal(decimal.RequireFromString("0.9")) {
		t.Errorf("rate = %s, want 0.9", m.Rate)
	}
	if m.BaseAmountCents != 9000 {
		t.Errorf("base = %d, want 9000", m.BaseAmountCents)
	}
}

func TestCreateTransactionRejectsZeroAmount(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestTransactionService(store, nil)
	acc := addAccount(t, store, "u1", "Checking", "EUR", true)

	_, err := svc.CreateTransaction(context.Background(), "u1", TransactionInput{
		OccurredAt: time.Now(),
		Movements:  []MovementInput{{AccountID: acc.ID, AmountCents: 0}},
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero amount should be rejected, got %v", err)
	}

	_, err = svc.CreateTransaction(context.Background(), "u1", TransactionInput{OccurredAt: time.Now()})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("empty movement list should be rejected, got %v", err)
	}
}

func TestCreateTransferSymmetry(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestTransactionService(store, nil)
	ctx := context.Background()

	from := addAccount(t, store, "u1", "Checking", "EUR", true)
	to := addAccount(t, store, "u1", "Savings", "EUR", true)

	res, err := svc.CreateTransfer(ctx, "u1", TransferInput{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		AmountCents:   5000,
		OccurredAt:    time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	if len(res.Movements) != 2 {
		t.Fatalf("movements = %d, want 2", len(res.Movements))
	}
	out, in := res.Movements[0], res.Movements[1]
	if out.AmountCents != -5000 || in.AmountCents != 5000 {
		t.Errorf("legs = %d / %d, want -5000 / 5000", out.AmountCents, in.AmountCents)
	}
	if out.TransferPeerID == nil || *out.TransferPeerID != in.ID {
		t.Errorf("out peer = %v, want %d", out.TransferPeerID, in.ID)
	}
	if in.TransferPeerID == nil || *in.TransferPeerID != out.ID {
		t.Errorf("in peer = %v, want %d", in.TransferPeerID, out.ID)
	}
}

func TestCreateTransferCrossCurrency(t *testing.T) {
	store := newFakeStore()
	provider := &stubProvider{rates: map[string]decimal.Decimal{
		"EUR/USD": decimal.RequireFromString("1.1"),
		"USD/EUR": decimal.RequireFromString("0.9090"),
	}}
	svc, _ := newTestTransactionService(store, provider)
	ctx := context.Background()

	from := addAccount(t, store, "u1", "Checking", "EUR", true)
	to := addAccount(t, store, "u1", "Broker", "USD", true)

	res, err := svc.CreateTransfer(ctx, "u1", TransferInput{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		AmountCents:   10000,
		OccurredAt:    time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	in := res.Movements[1]
	if in.AmountCents != 11000 {
		t.Errorf("destination amount = %d, want 11000 at rate 1.1", in.AmountCents)
	}
}

func TestCreateTransferValidation(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestTransactionService(store, nil)
	acc := addAccount(t, store, "u1", "Checking", "EUR", true)

	_, err := svc.CreateTransfer(context.Background(), "u1", TransferInput{
		FromAccountID: acc.ID, ToAccountID: acc.ID, AmountCents: 100, OccurredAt: time.Now(),
	})
	if !errors.Is(err, core.ErrSameAccount) {
		t.Errorf("same account should be rejected, got %v", err)
	}

	_, err = svc.CreateTransfer(context.Background(), "u1", TransferInput{
		FromAccountID: acc.ID, ToAccountID: acc.ID + 1, AmountCents: -5, OccurredAt: time.Now(),
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative amount should be rejected, got %v", err)
	}
}

func TestDeleteTransactionRoutesTransfersThroughUnlink(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestTransactionService(store, nil)
	ctx := context.Background()

	from := addAccount(t, store, "u1", "Checking", "EUR", true)
	to := addAccount(t, store, "u1", "Savings", "EUR", true)

	res, err := svc.CreateTransfer(ctx, "u1", TransferInput{
		FromAccountID: from.ID, ToAccountID: to.ID, AmountCents: 100,
		OccurredAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}

	if err := svc.DeleteTransaction(ctx, "u1", res.Transaction.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetMovement(ctx, "u1", res.Movements[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("out leg should be gone, got %v", err)
	}
	if _, err := store.GetMovement(ctx, "u1", res.Movements[1].ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("in leg should be gone, got %v", err)
	}
}

func TestSummaryAggregation(t *testing.T) {
	store := newFakeStore()
	months := newTestMonthService(store, nil, nil)
	ctx := context.Background()

	acc := addAccount(t, store, "u1", "Checking", "EUR", true)
	salary, _ := store.CreateCategory(ctx, core.Category{UserID: "u1", Name: "Salary", Type: "income"})
	food, _ := store.CreateCategory(ctx, core.Category{UserID: "u1", Name: "Groceries", Type: "expense"})

	march, _, err := months.EnsureMonth(ctx, "u1", 2024, 3)
	if err != nil {
		t.Fatalf("ensure march: %v", err)
	}

	record := func(day int, cents int64, categoryID *int64) {
		t.Helper()
		_, err := store.CreateTransaction(ctx,
			core.Transaction{UserID: "u1", CategoryID: categoryID, OccurredAt: time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)},
			[]core.Movement{{AccountID: acc.ID, AmountCents: cents, Rate: decimal.NewFromInt(1), BaseAmountCents: cents}})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	record(1, 200000, &salary.ID)
	record(5, -12000, &food.ID)
	record(8, -8000, &food.ID)
	record(10, -500, nil)

	// A transfer must not count as income or spending.
	savings := addAccount(t, store, "u1", "Savings", "EUR", true)
	_, err = store.CreateTransfer(ctx,
		core.Transaction{UserID: "u1", OccurredAt: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		core.Movement{AccountID: acc.ID, AmountCents: -50000, Rate: decimal.NewFromInt(1), BaseAmountCents: -50000},
		core.Movement{AccountID: savings.ID, AmountCents: 50000, Rate: decimal.NewFromInt(1), BaseAmountCents: 50000})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}

	if _, err := store.UpsertBudget(ctx, core.Budget{UserID: "u1", MonthID: march.ID, CategoryID: food.ID, PlannedCents: 30000}); err != nil {
		t.Fatalf("upsert budget: %v", err)
	}

	summary, err := months.Summary(ctx, "u1", march.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if summary.IncomeBaseCents != 200000 {
		t.Errorf("income = %d, want 200000", summary.IncomeBaseCents)
	}
	if summary.ExpenseBaseCents != 20500 {
		t.Errorf("expense = %d, want 20500", summary.ExpenseBaseCents)
	}
	if got := summary.NetBaseCents(); got != 179500 {
		t.Errorf("net = %d, want 179500", got)
	}

	var foodTotal *core.CategoryTotal
	for i := range summary.ByCategory {
		if summary.ByCategory[i].CategoryID == food.ID {
			foodTotal = &summary.ByCategory[i]
		}
	}
	if foodTotal == nil || foodTotal.ExpenseCents != 20000 {
		t.Errorf("groceries total = %+v, want expense 20000", foodTotal)
	}

	if len(summary.Budgets) != 1 {
		t.Fatalf("budgets = %d lines, want 1", len(summary.Budgets))
	}
	line := summary.Budgets[0]
	if line.ActualCents != 20000 || line.RemainingCents != 10000 {
		t.Errorf("budget line = %+v, want actual 20000 remaining 10000", line)
	}
	if line.Name != "Groceries" {
		t.Errorf("budget line name = %q, want Groceries", line.Name)
	}
}
