package core

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountBank   AccountKind = "bank"
	AccountCash   AccountKind = "cash"
	AccountCrypto AccountKind = "crypto"
)

type (
	AccountKind string

	// MonthKey orders months chronologically as year*100+month.
	// Ordering always uses this key, never creation timestamps, so
	// backfilled months sort correctly.
	MonthKey int

	Account struct {
		ID       int64
		UserID   string
		Name     string
		Currency string
		Kind     AccountKind
		// CoinID is the spot-price provider identifier, set only for
		// crypto accounts (e.g. "bitcoin").
		CoinID    string
		Active    bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Month struct {
		ID        int64
		UserID    string
		Year      int
		Month     int // 1-12
		CreatedAt time.Time
	}

	// OpeningBalance is an account's position at the start of a month.
	// BaseAmountCents is frozen at month-creation time; live valuations
	// are computed separately and never written back over it.
	OpeningBalance struct {
		ID              int64
		MonthID         int64
		AccountID       int64
		AmountCents     int64
		BaseAmountCents int64
	}

	Transaction struct {
		ID         int64
		UserID     string
		CategoryID *int64
		Note       string
		OccurredAt time.Time
		CreatedAt  time.Time
	}

	// Movement is one signed amount affecting one account within a
	// transaction. A transfer has two movements referencing each other
	// through TransferPeerID.
	Movement struct {
		ID              int64
		TransactionID   int64
		AccountID       int64
		AmountCents     int64
		Rate            decimal.Decimal
		BaseAmountCents int64
		TransferPeerID  *int64
	}

	Category struct {
		ID     int64
		UserID string
		Name   string
		Type   string // income / expense
	}

	// Budget is a planned amount for a (month, category) pair.
	Budget struct {
		ID           int64
		UserID       string
		MonthID      int64
		CategoryID   int64
		PlannedCents int64
	}

	Settings struct {
		UserID       string
		BaseCurrency string
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidMonth     = errors.New("invalid year/month")
	ErrInvalidRange     = errors.New("start month is after end month")
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrNotTransfer      = errors.New("movement is not part of a transfer")
	ErrSameAccount      = errors.New("transfer must use two distinct accounts")
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// NewMonthKey builds the composite ordering key for a (year, month) pair.
func NewMonthKey(year, month int) MonthKey {
	return MonthKey(year*100 + month)
}

func (m Month) Key() MonthKey {
	return NewMonthKey(m.Year, m.Month)
}

// Start returns the first instant of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month in UTC.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// Next returns the (year, month) pair immediately after this month.
func (m Month) Next() (year, month int) {
	year, month = m.Year, m.Month+1
	if month > 12 {
		year, month = year+1, 1
	}
	return year, month
}

// ValidateYearMonth rejects month values outside 1-12 and years outside
// a sane range before any storage work happens.
func ValidateYearMonth(year, month int) error {
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	if year < 1970 || year > 9999 {
		return ErrInvalidMonth
	}
	return nil
}

// ValidateCurrency checks for a three-letter uppercase ISO-4217 style code.
func ValidateCurrency(code string) error {
	if !currencyRe.MatchString(code) {
		return ErrInvalidCurrency
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if err := ValidateCurrency(a.Currency); err != nil {
		return err
	}
	switch a.Kind {
	case AccountBank, AccountCash, AccountCrypto:
	default:
		return errors.New("invalid account kind")
	}
	if a.Kind == AccountCrypto && strings.TrimSpace(a.CoinID) == "" {
		return errors.New("crypto account requires a coin id")
	}
	return nil
}
