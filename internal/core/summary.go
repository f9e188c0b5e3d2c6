package core

// CategoryTotal aggregates income and expense cents for one category,
// expressed in the user's base currency (frozen base amounts).
type CategoryTotal struct {
	CategoryID   int64
	Name         string
	IncomeCents  int64
	ExpenseCents int64
}

// AccountBalance pairs an account with its opening position and, when
// computed, a live valuation in the base currency.
type AccountBalance struct {
	Account         Account
	AmountCents     int64
	BaseAmountCents int64
	// LiveBaseAmountCents is the optional current-value overlay, present
	// only when a live rate was resolved for a non-zero amount.
	LiveBaseAmountCents *int64
}

// BudgetLine compares a planned category amount with what was spent.
type BudgetLine struct {
	CategoryID     int64
	Name           string
	PlannedCents   int64
	ActualCents    int64
	RemainingCents int64
}

// MonthSummary is the dashboard aggregation for one month: opening
// positions, in-month movement totals and budget standing, all in the
// user's base currency.
type MonthSummary struct {
	Month            Month
	BaseCurrency     string
	OpeningBaseCents int64
	IncomeBaseCents  int64
	ExpenseBaseCents int64
	Balances         []AccountBalance
	ByCategory       []CategoryTotal
	Budgets          []BudgetLine
}

// NetBaseCents returns income minus expense for the month.
func (s MonthSummary) NetBaseCents() int64 {
	return s.IncomeBaseCents - s.ExpenseBaseCents
}
