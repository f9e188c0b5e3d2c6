package http

import (
	"time"

	"finify/internal/core"
	"finify/internal/services"
	"finify/internal/storage"
)

type accountDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Kind      string    `json:"kind"`
	CoinID    string    `json:"coin_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAccountDTO(a core.Account) accountDTO {
	return accountDTO{
		ID:        a.ID,
		Name:      a.Name,
		Currency:  a.Currency,
		Kind:      string(a.Kind),
		CoinID:    a.CoinID,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toAccountDTOs(accounts []core.Account) []accountDTO {
	out := make([]accountDTO, len(accounts))
	for i, a := range accounts {
		out[i] = toAccountDTO(a)
	}
	return out
}

type monthDTO struct {
	ID        int64     `json:"id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	CreatedAt time.Time `json:"created_at"`
}

func toMonthDTO(m core.Month) monthDTO {
	return monthDTO{ID: m.ID, Year: m.Year, Month: m.Month, CreatedAt: m.CreatedAt}
}

type movementDTO struct {
	ID              int64  `json:"id"`
	AccountID       int64  `json:"account_id"`
	AmountCents     int64  `json:"amount_cents"`
	Amount          string `json:"amount"`
	Rate            string `json:"rate"`
	BaseAmountCents int64  `json:"base_amount_cents"`
	TransferPeerID  *int64 `json:"transfer_peer_id,omitempty"`
}

type transactionDTO struct {
	ID         int64         `json:"id"`
	CategoryID *int64        `json:"category_id,omitempty"`
	Note       string        `json:"note,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
	Movements  []movementDTO `json:"movements"`
}

func toTransactionDTO(t storage.TransactionWithMovements) transactionDTO {
	dto := transactionDTO{
		ID:         t.Transaction.ID,
		CategoryID: t.Transaction.CategoryID,
		Note:       t.Transaction.Note,
		OccurredAt: t.Transaction.OccurredAt,
		Movements:  make([]movementDTO, len(t.Movements)),
	}
	for i, m := range t.Movements {
		dto.Movements[i] = movementDTO{
			ID:              m.ID,
			AccountID:       m.AccountID,
			AmountCents:     m.AmountCents,
			Amount:          core.FormatCents(m.AmountCents),
			Rate:            m.Rate.String(),
			BaseAmountCents: m.BaseAmountCents,
			TransferPeerID:  m.TransferPeerID,
		}
	}
	return dto
}

type accountPreviewDTO struct {
	Account            accountDTO `json:"account"`
	CarriedNativeCents int64      `json:"carried_native_cents"`
	CarriedBaseCents   int64      `json:"carried_base_cents"`
	LiveBaseCents      *int64     `json:"live_base_cents,omitempty"`
}

type previewDTO struct {
	Year           int                 `json:"year"`
	Month          int                 `json:"month"`
	BaseCurrency   string              `json:"base_currency"`
	Accounts       []accountPreviewDTO `json:"accounts"`
	TotalBaseCents int64               `json:"total_base_cents"`
}

func toPreviewDTO(p services.MonthPreview) previewDTO {
	dto := previewDTO{
		Year:           p.Year,
		Month:          p.Month,
		BaseCurrency:   p.BaseCurrency,
		Accounts:       make([]accountPreviewDTO, len(p.Accounts)),
		TotalBaseCents: p.TotalBaseCents,
	}
	for i, ap := range p.Accounts {
		dto.Accounts[i] = accountPreviewDTO{
			Account:            toAccountDTO(ap.Account),
			CarriedNativeCents: ap.CarriedNativeCents,
			CarriedBaseCents:   ap.CarriedBaseCents,
			LiveBaseCents:      ap.LiveBaseCents,
		}
	}
	return dto
}

type balanceDTO struct {
	Account             accountDTO `json:"account"`
	AmountCents         int64      `json:"amount_cents"`
	BaseAmountCents     int64      `json:"base_amount_cents"`
	LiveBaseAmountCents *int64     `json:"live_base_amount_cents,omitempty"`
}

type categoryTotalDTO struct {
	CategoryID   int64  `json:"category_id"`
	Name         string `json:"name"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
}

type budgetLineDTO struct {
	CategoryID     int64  `json:"category_id"`
	Name           string `json:"name"`
	PlannedCents   int64  `json:"planned_cents"`
	ActualCents    int64  `json:"actual_cents"`
	RemainingCents int64  `json:"remaining_cents"`
}

type summaryDTO struct {
	Month            monthDTO           `json:"month"`
	BaseCurrency     string             `json:"base_currency"`
	OpeningBaseCents int64              `json:"opening_base_cents"`
	IncomeBaseCents  int64              `json:"income_base_cents"`
	ExpenseBaseCents int64              `json:"expense_base_cents"`
	NetBaseCents     int64              `json:"net_base_cents"`
	Balances         []balanceDTO       `json:"balances"`
	ByCategory       []categoryTotalDTO `json:"by_category"`
	Budgets          []budgetLineDTO    `json:"budgets,omitempty"`
}

func toSummaryDTO(s core.MonthSummary) summaryDTO {
	dto := summaryDTO{
		Month:            toMonthDTO(s.Month),
		BaseCurrency:     s.BaseCurrency,
		OpeningBaseCents: s.OpeningBaseCents,
		IncomeBaseCents:  s.IncomeBaseCents,
		ExpenseBaseCents: s.ExpenseBaseCents,
		NetBaseCents:     s.NetBaseCents(),
		Balances:         make([]balanceDTO, len(s.Balances)),
		ByCategory:       make([]categoryTotalDTO, len(s.ByCategory)),
		Budgets:          make([]budgetLineDTO, len(s.Budgets)),
	}
	for i, b := range s.Balances {
		dto.Balances[i] = balanceDTO{
			Account:             toAccountDTO(b.Account),
			AmountCents:         b.AmountCents,
			BaseAmountCents:     b.BaseAmountCents,
			LiveBaseAmountCents: b.LiveBaseAmountCents,
		}
	}
	for i, c := range s.ByCategory {
		dto.ByCategory[i] = categoryTotalDTO(c)
	}
	for i, b := range s.Budgets {
		dto.Budgets[i] = budgetLineDTO(b)
	}
	return dto
}

type categoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type budgetDTO struct {
	ID           int64 `json:"id"`
	MonthID      int64 `json:"month_id"`
	CategoryID   int64 `json:"category_id"`
	PlannedCents int64 `json:"planned_cents"`
}

type settingsDTO struct {
	BaseCurrency string `json:"base_currency"`
}

type rateDTO struct {
	Date      string `json:"date,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	Rate      string `json:"rate"`
	FromCache bool   `json:"from_cache"`
	Stored    bool   `json:"stored"`
}
