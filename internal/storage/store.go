// Package storage persists Finify's domain model behind the Store
// interface, with SQLite and Postgres implementations selected through
// the factory. Every query is scoped by the owning user's id; there is
// no cross-user visibility at this layer.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finify/internal/core"
)

// MovementSum is the per-account net movement over a period, in native
// and frozen base cents.
type MovementSum struct {
	AmountCents     int64
	BaseAmountCents int64
}

// MovementRecord joins a movement with the fields of its owning
// transaction that aggregations need.
type MovementRecord struct {
	core.Movement
	CategoryID *int64
	OccurredAt time.Time
}

// TransactionWithMovements bundles a transaction and its movement lines.
type TransactionWithMovements struct {
	Transaction core.Transaction
	Movements   []core.Movement
}

// Store is the persistence boundary for all Finify services. Months,
// balances and movements are written transactionally; lookups return
// core.ErrNotFound when the row is absent or owned by another user.
type Store interface {
	// Settings
	GetSettings(ctx context.Context, userID string) (core.Settings, error)
	PutSettings(ctx context.Context, s core.Settings) error

	// Accounts
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	GetAccount(ctx context.Context, userID string, id int64) (core.Account, error)
	ListAccounts(ctx context.Context, userID string, activeOnly bool) ([]core.Account, error)
	UpdateAccount(ctx context.Context, a core.Account) error

	// Categories
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)

	// Months and opening balances
	GetMonth(ctx context.Context, userID string, id int64) (core.Month, error)
	GetMonthByKey(ctx context.Context, userID string, year, month int) (core.Month, error)
	LatestMonth(ctx context.Context, userID string) (core.Month, error)
	LatestMonthBefore(ctx context.Context, userID string, key core.MonthKey) (core.Month, error)
	MonthsInRange(ctx context.Context, userID string, start, end core.MonthKey) ([]core.Month, error)
	// CreateMonthWithBalances inserts the month and seeds its opening
	// balances in one transaction. When the (user, year, month) row
	// already exists the existing month is returned with created=false
	// and no balances are written.
	CreateMonthWithBalances(ctx context.Context, m core.Month, balances []core.OpeningBalance) (core.Month, bool, error)
	ListOpeningBalances(ctx context.Context, monthID int64) ([]core.OpeningBalance, error)

	// Transactions and movements
	CreateTransaction(ctx context.Context, t core.Transaction, movements []core.Movement) (TransactionWithMovements, error)
	// CreateTransfer inserts one transaction with two movement lines and
	// cross-links them before committing.
	CreateTransfer(ctx context.Context, t core.Transaction, out, in core.Movement) (TransactionWithMovements, error)
	GetTransaction(ctx context.Context, userID string, id int64) (TransactionWithMovements, error)
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]TransactionWithMovements, error)
	UpdateTransaction(ctx context.Context, t core.Transaction, movements []core.Movement) error
	DeleteTransaction(ctx context.Context, userID string, id int64) error
	GetMovement(ctx context.Context, userID string, id int64) (core.Movement, error)
	// DeleteTransferByMovement nulls the symmetric link, removes both
	// movement rows and the owning transaction in one transaction.
	DeleteTransferByMovement(ctx context.Context, userID string, movementID int64) error

	// Aggregations
	SumMovementsByAccount(ctx context.Context, userID string, from, to time.Time) (map[int64]MovementSum, error)
	ListMovementsInRange(ctx context.Context, userID string, from, to time.Time) ([]MovementRecord, error)

	// Budgets
	UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	ListBudgets(ctx context.Context, userID string, monthID int64) ([]core.Budget, error)

	// FX rate cache (fx.CacheStore)
	GetRate(ctx context.Context, date time.Time, from, to, source string) (decimal.Decimal, error)
	PutRate(ctx context.Context, date time.Time, from, to, source string, rate decimal.Decimal) error

	Close() error
}
