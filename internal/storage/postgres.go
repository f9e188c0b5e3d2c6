package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"finify/internal/core"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if err := RunPostgresMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Settings

func (s *PostgresStore) GetSettings(ctx context.Context, userID string) (core.Settings, error) {
	st := core.Settings{UserID: userID}
	err := s.pool.QueryRow(ctx,
		"SELECT base_currency FROM settings WHERE user_id = $1", userID,
	).Scan(&st.BaseCurrency)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Settings{}, core.ErrNotFound
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) PutSettings(ctx context.Context, st core.Settings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (user_id, base_currency) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET base_currency = excluded.base_currency`,
		st.UserID, st.BaseCurrency)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

// Accounts

func (s *PostgresStore) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (user_id, name, currency, kind, coin_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		a.UserID, a.Name, a.Currency, string(a.Kind), a.CoinID, a.Active, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string, id int64) (core.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, currency, kind, coin_id, active, created_at, updated_at
		FROM accounts WHERE user_id = $1 AND id = $2`, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) ListAccounts(ctx context.Context, userID string, activeOnly bool) ([]core.Account, error) {
	query := `
		SELECT id, user_id, name, currency, kind, coin_id, active, created_at, updated_at
		FROM accounts WHERE user_id = $1`
	if activeOnly {
		query += " AND active"
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, a core.Account) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET name = $1, currency = $2, kind = $3, coin_id = $4, active = $5, updated_at = $6
		WHERE user_id = $7 AND id = $8`,
		a.Name, a.Currency, string(a.Kind), a.CoinID, a.Active, time.Now().UTC(), a.UserID, a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Categories

func (s *PostgresStore) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	err := s.pool.QueryRow(ctx,
		"INSERT INTO categories (user_id, name, type) VALUES ($1, $2, $3) RETURNING id",
		c.UserID, c.Name, c.Type,
	).Scan(&c.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, user_id, name, type FROM categories WHERE user_id = $1 ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// Months

func (s *PostgresStore) getMonth(ctx context.Context, query string, args ...any) (core.Month, error) {
	m, err := scanMonth(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Month{}, core.ErrNotFound
	}
	return m, err
}

func (s *PostgresStore) GetMonth(ctx context.Context, userID string, id int64) (core.Month, error) {
	return s.getMonth(ctx,
		"SELECT id, user_id, year, month, created_at FROM months WHERE user_id = $1 AND id = $2",
		userID, id)
}

func (s *PostgresStore) GetMonthByKey(ctx context.Context, userID string, year, month int) (core.Month, error) {
	return s.getMonth(ctx,
		"SELECT id, user_id, year, month, created_at FROM months WHERE user_id = $1 AND year = $2 AND month = $3",
		userID, year, month)
}

func (s *PostgresStore) LatestMonth(ctx context.Context, userID string) (core.Month, error) {
	return s.getMonth(ctx, `
		SELECT id, user_id, year, month, created_at FROM months
		WHERE user_id = $1 ORDER BY year * 100 + month DESC LIMIT 1`, userID)
}

func (s *PostgresStore) LatestMonthBefore(ctx context.Context, userID string, key core.MonthKey) (core.Month, error) {
	return s.getMonth(ctx, `
		SELECT id, user_id, year, month, created_at FROM months
		WHERE user_id = $1 AND year * 100 + month < $2
		ORDER BY year * 100 + month DESC LIMIT 1`, userID, int(key))
}

func (s *PostgresStore) MonthsInRange(ctx context.Context, userID string, start, end core.MonthKey) ([]core.Month, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, year, month, created_at FROM months
		WHERE user_id = $1 AND year * 100 + month BETWEEN $2 AND $3
		ORDER BY year * 100 + month`, userID, int(start), int(end))
	if err != nil {
		return nil, fmt.Errorf("months in range: %w", err)
	}
	defer rows.Close()

	var months []core.Month
	for rows.Next() {
		m, err := scanMonth(rows)
		if err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

func (s *PostgresStore) CreateMonthWithBalances(ctx context.Context, m core.Month, balances []core.OpeningBalance) (core.Month, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Month{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m.CreatedAt = time.Now().UTC()
	err = tx.QueryRow(ctx, `
		INSERT INTO months (user_id, year, month, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, year, month) DO NOTHING
		RETURNING id`,
		m.UserID, m.Year, m.Month, m.CreatedAt,
	).Scan(&m.ID)

	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race or the month already existed: return it untouched.
		existing, err := scanMonth(tx.QueryRow(ctx,
			"SELECT id, user_id, year, month, created_at FROM months WHERE user_id = $1 AND year = $2 AND month = $3",
			m.UserID, m.Year, m.Month))
		if err != nil {
			return core.Month{}, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return core.Month{}, false, fmt.Errorf("commit: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return core.Month{}, false, fmt.Errorf("insert month: %w", err)
	}

	for _, b := range balances {
		_, err := tx.Exec(ctx, `
			INSERT INTO opening_balances (month_id, account_id, amount_cents, base_amount_cents)
			VALUES ($1, $2, $3, $4)`,
			m.ID, b.AccountID, b.AmountCents, b.BaseAmountCents)
		if err != nil {
			return core.Month{}, false, fmt.Errorf("insert opening balance: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Month{}, false, fmt.Errorf("commit: %w", err)
	}
	return m, true, nil
}

func (s *PostgresStore) ListOpeningBalances(ctx context.Context, monthID int64) ([]core.OpeningBalance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, month_id, account_id, amount_cents, base_amount_cents
		FROM opening_balances WHERE month_id = $1 ORDER BY account_id`, monthID)
	if err != nil {
		return nil, fmt.Errorf("list opening balances: %w", err)
	}
	defer rows.Close()

	var balances []core.OpeningBalance
	for rows.Next() {
		var b core.OpeningBalance
		if err := rows.Scan(&b.ID, &b.MonthID, &b.AccountID, &b.AmountCents, &b.BaseAmountCents); err != nil {
			return nil, fmt.Errorf("scan opening balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// Transactions and movements

func (s *PostgresStore) insertTransaction(ctx context.Context, tx pgx.Tx, t *core.Transaction) error {
	t.CreatedAt = time.Now().UTC()
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, category_id, note, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		t.UserID, t.CategoryID, t.Note, t.OccurredAt.UTC(), t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) insertMovement(ctx context.Context, tx pgx.Tx, m *core.Movement) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO movements (transaction_id, account_id, amount_cents, exchange_rate, base_amount_cents, transfer_peer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		m.TransactionID, m.AccountID, m.AmountCents, m.Rate.String(), m.BaseAmountCents, m.TransferPeerID,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, t core.Transaction, movements []core.Movement) (TransactionWithMovements, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return TransactionWithMovements{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.insertTransaction(ctx, tx, &t); err != nil {
		return TransactionWithMovements{}, err
	}
	for i := range movements {
		movements[i].TransactionID = t.ID
		if err := s.insertMovement(ctx, tx, &movements[i]); err != nil {
			return TransactionWithMovements{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return TransactionWithMovements{}, fmt.Errorf("commit: %w", err)
	}
	return TransactionWithMovements{Transaction: t, Movements: movements}, nil
}

func (s *PostgresStore) CreateTransfer(ctx context.Context, t core.Transaction, out, in core.Movement) (TransactionWithMovements, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return TransactionWithMovements{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.insertTransaction(ctx, tx, &t); err != nil {
		return TransactionWithMovements{}, err
	}
	out.TransactionID, in.TransactionID = t.ID, t.ID
	if err := s.insertMovement(ctx, tx, &out); err != nil {
		return TransactionWithMovements{}, err
	}
	if err := s.insertMovement(ctx, tx, &in); err != nil {
		return TransactionWithMovements{}, err
	}

	if _, err := tx.Exec(ctx,
		"UPDATE movements SET transfer_peer_id = $1 WHERE id = $2", in.ID, out.ID); err != nil {
		return TransactionWithMovements{}, fmt.Errorf("link transfer out leg: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE movements SET transfer_peer_id = $1 WHERE id = $2", out.ID, in.ID); err != nil {
		return TransactionWithMovements{}, fmt.Errorf("link transfer in leg: %w", err)
	}
	out.TransferPeerID, in.TransferPeerID = &in.ID, &out.ID

	if err := tx.Commit(ctx); err != nil {
		return TransactionWithMovements{}, fmt.Errorf("commit: %w", err)
	}
	return TransactionWithMovements{Transaction: t, Movements: []core.Movement{out, in}}, nil
}

func (s *PostgresStore) listMovements(ctx context.Context, transactionID int64) ([]core.Movement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, transaction_id, account_id, amount_cents, exchange_rate::text, base_amount_cents, transfer_peer_id
		FROM movements WHERE transaction_id = $1 ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var movements []core.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *PostgresStore) GetTransaction(ctx context.Context, userID string, id int64) (TransactionWithMovements, error) {
	var t core.Transaction
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, category_id, note, occurred_at, created_at
		FROM transactions WHERE user_id = $1 AND id = $2`, userID, id,
	).Scan(&t.ID, &t.UserID, &t.CategoryID, &t.Note, &t.OccurredAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransactionWithMovements{}, core.ErrNotFound
	}
	if err != nil {
		return TransactionWithMovements{}, fmt.Errorf("get transaction: %w", err)
	}

	movements, err := s.listMovements(ctx, t.ID)
	if err != nil {
		return TransactionWithMovements{}, err
	}
	return TransactionWithMovements{Transaction: t, Movements: movements}, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]TransactionWithMovements, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, category_id, note, occurred_at, created_at
		FROM transactions
		WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at, id`, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var result []TransactionWithMovements
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.Note, &t.OccurredAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, TransactionWithMovements{Transaction: t})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range result {
		movements, err := s.listMovements(ctx, result[i].Transaction.ID)
		if err != nil {
			return nil, err
		}
		result[i].Movements = movements
	}
	return result, nil
}

func (s *PostgresStore) UpdateTransaction(ctx context.Context, t core.Transaction, movements []core.Movement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE transactions SET category_id = $1, note = $2, occurred_at = $3
		WHERE user_id = $4 AND id = $5`,
		t.CategoryID, t.Note, t.OccurredAt.UTC(), t.UserID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}

	for _, m := range movements {
		tag, err := tx.Exec(ctx, `
			UPDATE movements SET account_id = $1, amount_cents = $2, exchange_rate = $3, base_amount_cents = $4
			WHERE id = $5 AND transaction_id = $6`,
			m.AccountID, m.AmountCents, m.Rate.String(), m.BaseAmountCents, m.ID, t.ID)
		if err != nil {
			return fmt.Errorf("update movement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return core.ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM transactions WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetMovement(ctx context.Context, userID string, id int64) (core.Movement, error) {
	m, err := scanMovement(s.pool.QueryRow(ctx, `
		SELECT m.id, m.transaction_id, m.account_id, m.amount_cents, m.exchange_rate::text, m.base_amount_cents, m.transfer_peer_id
		FROM movements m
		JOIN transactions t ON t.id = m.transaction_id
		WHERE t.user_id = $1 AND m.id = $2`, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Movement{}, core.ErrNotFound
	}
	return m, err
}

func (s *PostgresStore) DeleteTransferByMovement(ctx context.Context, userID string, movementID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := scanMovement(tx.QueryRow(ctx, `
		SELECT m.id, m.transaction_id, m.account_id, m.amount_cents, m.exchange_rate::text, m.base_amount_cents, m.transfer_peer_id
		FROM movements m
		JOIN transactions t ON t.id = m.transaction_id
		WHERE t.user_id = $1 AND m.id = $2`, userID, movementID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}
	if m.TransferPeerID == nil {
		return core.ErrNotTransfer
	}

	if _, err := tx.Exec(ctx,
		"UPDATE movements SET transfer_peer_id = NULL WHERE id IN ($1, $2)", m.ID, *m.TransferPeerID); err != nil {
		return fmt.Errorf("unlink transfer: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"DELETE FROM transactions WHERE id = $1", m.TransactionID); err != nil {
		return fmt.Errorf("delete transfer transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Aggregations

func (s *PostgresStore) SumMovementsByAccount(ctx context.Context, userID string, from, to time.Time) (map[int64]MovementSum, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.account_id, SUM(m.amount_cents), SUM(m.base_amount_cents)
		FROM movements m
		JOIN transactions t ON t.id = m.transaction_id
		WHERE t.user_id = $1 AND t.occurred_at >= $2 AND t.occurred_at < $3
		GROUP BY m.account_id`, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("sum movements: %w", err)
	}
	defer rows.Close()

	sums := make(map[int64]MovementSum)
	for rows.Next() {
		var accountID int64
		var sum MovementSum
		if err := rows.Scan(&accountID, &sum.AmountCents, &sum.BaseAmountCents); err != nil {
			return nil, fmt.Errorf("scan movement sum: %w", err)
		}
		sums[accountID] = sum
	}
	return sums, rows.Err()
}

func (s *PostgresStore) ListMovementsInRange(ctx context.Context, userID string, from, to time.Time) ([]MovementRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.transaction_id, m.account_id, m.amount_cents, m.exchange_rate::text, m.base_amount_cents, m.transfer_peer_id,
		       t.category_id, t.occurred_at
		FROM movements m
		JOIN transactions t ON t.id = m.transaction_id
		WHERE t.user_id = $1 AND t.occurred_at >= $2 AND t.occurred_at < $3
		ORDER BY t.occurred_at, m.id`, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list movements in range: %w", err)
	}
	defer rows.Close()

	var records []MovementRecord
	for rows.Next() {
		var rec MovementRecord
		var rate string
		err := rows.Scan(&rec.ID, &rec.TransactionID, &rec.AccountID, &rec.AmountCents, &rate,
			&rec.BaseAmountCents, &rec.TransferPeerID, &rec.CategoryID, &rec.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan movement record: %w", err)
		}
		rec.Rate, err = decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("parse movement rate %q: %w", rate, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Budgets

func (s *PostgresStore) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO budgets (user_id, month_id, category_id, planned_cents)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, month_id, category_id) DO UPDATE SET planned_cents = excluded.planned_cents
		RETURNING id`,
		b.UserID, b.MonthID, b.CategoryID, b.PlannedCents,
	).Scan(&b.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBudgets(ctx context.Context, userID string, monthID int64) ([]core.Budget, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, month_id, category_id, planned_cents
		FROM budgets WHERE user_id = $1 AND month_id = $2 ORDER BY category_id`, userID, monthID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.MonthID, &b.CategoryID, &b.PlannedCents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// FX rate cache

func (s *PostgresStore) GetRate(ctx context.Context, date time.Time, from, to, source string) (decimal.Decimal, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `
		SELECT rate::text FROM fx_rates
		WHERE rate_date = $1 AND from_currency = $2 AND to_currency = $3 AND source = $4`,
		date.UTC().Format(dateLayout), from, to, source,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, core.ErrNotFound
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("get rate: %w", err)
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse rate %q: %w", raw, err)
	}
	return rate, nil
}

func (s *PostgresStore) PutRate(ctx context.Context, date time.Time, from, to, source string, rate decimal.Decimal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fx_rates (rate_date, from_currency, to_currency, source, rate)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rate_date, from_currency, to_currency, source) DO NOTHING`,
		date.UTC().Format(dateLayout), from, to, source, rate.String())
	if err != nil {
		return fmt.Errorf("put rate: %w", err)
	}
	return nil
}
