package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"finify/internal/core"
	"finify/internal/fx"
)

// Summary aggregates one month into its dashboard view: opening
// positions with optional live revaluation, income and expense totals,
// per-category breakdown and budget standing. All totals use the frozen
// base amounts, so past months never shift when rates move.
func (s *MonthService) Summary(ctx context.Context, userID string, monthID int64) (core.MonthSummary, error) {
	month, err := s.store.GetMonth(ctx, userID, monthID)
	if err != nil {
		return core.MonthSummary{}, err
	}
	base, err := s.BaseCurrency(ctx, userID)
	if err != nil {
		return core.MonthSummary{}, err
	}

	summary := core.MonthSummary{Month: month, BaseCurrency: base}

	if err := s.fillBalances(ctx, userID, &summary); err != nil {
		return core.MonthSummary{}, err
	}
	if err := s.fillTotals(ctx, userID, &summary); err != nil {
		return core.MonthSummary{}, err
	}
	if err := s.fillBudgets(ctx, userID, &summary); err != nil {
		return core.MonthSummary{}, err
	}

	return summary, nil
}

func (s *MonthService) fillBalances(ctx context.Context, userID string, summary *core.MonthSummary) error {
	accounts, err := s.store.ListAccounts(ctx, userID, false)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	byID := make(map[int64]core.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	balances, err := s.store.ListOpeningBalances(ctx, summary.Month.ID)
	if err != nil {
		return fmt.Errorf("list opening balances: %w", err)
	}

	summary.Balances = make([]core.AccountBalance, 0, len(balances))
	for _, b := range balances {
		summary.Balances = append(summary.Balances, core.AccountBalance{
			Account:         byID[b.AccountID],
			AmountCents:     b.AmountCents,
			BaseAmountCents: b.BaseAmountCents,
		})
		summary.OpeningBaseCents += b.BaseAmountCents
	}

	s.revalueBalances(ctx, summary.BaseCurrency, summary.Balances)
	return nil
}

// revalueBalances overlays a current-rate valuation on each non-zero
// position. Unresolvable rates leave the overlay nil; the frozen numbers
// stand on their own.
func (s *MonthService) revalueBalances(ctx context.Context, base string, balances []core.AccountBalance) {
	batch := s.resolver.NewBatch()
	var g errgroup.Group
	g.SetLimit(4)

	for i := range balances {
		if balances[i].AmountCents == 0 {
			continue
		}
		g.Go(func() error {
			a := balances[i].Account
			live, err := s.liveValue(ctx, batch, base, a, balances[i].AmountCents)
			if err != nil {
				slog.WarnContext(ctx, "Live valuation unavailable",
					"account_id", a.ID,
					"currency", a.Currency,
					"error", err)
				return nil
			}
			balances[i].LiveBaseAmountCents = &live
			return nil
		})
	}
	g.Wait()
}

// fillTotals walks the month's movements. Transfer legs are internal
// moves and never count as income or spending.
func (s *MonthService) fillTotals(ctx context.Context, userID string, summary *core.MonthSummary) error {
	movements, err := s.store.ListMovementsInRange(ctx, userID, summary.Month.Start(), summary.Month.End())
	if err != nil {
		return fmt.Errorf("list movements: %w", err)
	}

	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	totals := make(map[int64]*core.CategoryTotal)
	for _, m := range movements {
		if m.TransferPeerID != nil {
			continue
		}
		if m.BaseAmountCents >= 0 {
			summary.IncomeBaseCents += m.BaseAmountCents
		} else {
			summary.ExpenseBaseCents += -m.BaseAmountCents
		}

		var catID int64
		if m.CategoryID != nil {
			catID = *m.CategoryID
		}
		total, ok := totals[catID]
		if !ok {
			name := names[catID]
			if catID == 0 {
				name = "Uncategorized"
			}
			total = &core.CategoryTotal{CategoryID: catID, Name: name}
			totals[catID] = total
		}
		if m.BaseAmountCents >= 0 {
			total.IncomeCents += m.BaseAmountCents
		} else {
			total.ExpenseCents += -m.BaseAmountCents
		}
	}

	summary.ByCategory = make([]core.CategoryTotal, 0, len(totals))
	for _, total := range totals {
		summary.ByCategory = append(summary.ByCategory, *total)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		return summary.ByCategory[i].CategoryID < summary.ByCategory[j].CategoryID
	})
	return nil
}

func (s *MonthService) fillBudgets(ctx context.Context, userID string, summary *core.MonthSummary) error {
	budgets, err := s.store.ListBudgets(ctx, userID, summary.Month.ID)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil
	}

	spent := make(map[int64]int64, len(summary.ByCategory))
	names := make(map[int64]string, len(summary.ByCategory))
	for _, total := range summary.ByCategory {
		spent[total.CategoryID] = total.ExpenseCents
		names[total.CategoryID] = total.Name
	}

	summary.Budgets = make([]core.BudgetLine, 0, len(budgets))
	for _, b := range budgets {
		actual := spent[b.CategoryID]
		name := names[b.CategoryID]
		if name == "" {
			name = s.categoryName(ctx, userID, b.CategoryID)
		}
		summary.Budgets = append(summary.Budgets, core.BudgetLine{
			CategoryID:     b.CategoryID,
			Name:           name,
			PlannedCents:   b.PlannedCents,
			ActualCents:    actual,
			RemainingCents: b.PlannedCents - actual,
		})
	}
	return nil
}

// categoryName resolves a budget's category when the month had no
// spending in it, so the line still carries a label.
func (s *MonthService) categoryName(ctx context.Context, userID string, categoryID int64) string {
	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return ""
	}
	for _, c := range categories {
		if c.ID == categoryID {
			return c.Name
		}
	}
	return ""
}

// ResolveRate exposes the FX resolver for direct lookups.
func (s *MonthService) ResolveRate(ctx context.Context, date time.Time, from, to string) (fx.Resolution, error) {
	return s.resolver.Resolve(ctx, date, from, to)
}
