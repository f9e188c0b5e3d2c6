package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"finify/internal/core"
)

const dateLayout = "2006-01-02"

// SQLiteStore implements Store on a local SQLite file via database/sql.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Settings

func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (core.Settings, error) {
	st := core.Settings{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		"SELECT base_currency FROM settings WHERE user_id = ?", userID,
	).Scan(&st.BaseCurrency)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{}, core.ErrNotFound
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) PutSettings(ctx context.Context, st core.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (user_id, base_currency) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET base_currency = excluded.base_currency`,
		st.UserID, st.BaseCurrency)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

// Accounts

func (s *SQLiteStore) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, name, currency, kind, coin_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, a.Currency, string(a.Kind), a.CoinID, a.Active, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, userID string, id int64) (core.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, currency, kind, coin_id, active, created_at, updated_at
		FROM accounts WHERE user_id = ? AND id = ?`, userID, id)
	return scanAccount(row)
}

func (s *SQLiteStore) ListAccounts(ctx context.Context, userID string, activeOnly bool) ([]core.Account, error) {
	query := `
		SELECT id, user_id, name, currency, kind, coin_id, active, created_at, updated_at
		FROM accounts WHERE user_id = ?`
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, userID)
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

func (s *SQLiteStore) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET name = ?, currency = ?, kind = ?, coin_id = ?, active = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		a.Name, a.Currency, string(a.Kind), a.CoinID, a.Active, time.Now().UTC(), a.UserID, a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	var kind string
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &kind, &a.CoinID, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Kind = core.AccountKind(kind)
	return a, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Categories

func (s *SQLiteStore) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO categories (user_id, name, type) VALUES (?, ?, ?)",
		c.UserID, c.Name, c.Type)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, type FROM categories WHERE user_id = ? ORDER BY name", userID)
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

func scanMonth(row rowScanner) (core.Month, error) {
	var m core.Month
	err := row.Scan(&m.ID, &m.UserID, &m.Year, &m.Month, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Month{}, core.ErrNotFound
	}
	if err != nil {
		return core.Month{}, fmt.Errorf("scan month: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) GetMonth(ctx context.Context, userID string, id int64) (core.Month, error) {
	return scanMonth(s.db.QueryRowContext(ctx,
		"SELECT id, user_id, year, month, created_at FROM months WHERE user_id = ? AND id = ?",
		userID, id))
}

func (s *SQLiteStore) GetMonthByKey(ctx context.Context, userID string, year, month int) (core.Month, error) {
	return scanMonth(s.db.QueryRowContext(ctx,
		"SELECT id, user_id, year, month, created_at FROM months WHERE user_id = ? AND year = ? AND month = ?",
		userID, year, month))
}

func (s *SQLiteStore) LatestMonth(ctx context.Context, userID string) (core.Month, error) {
	return scanMonth(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, year, month, created_at FROM months
		WHERE user_id = ? ORDER BY year * 100 + month DESC LIMIT 1`, userID))
}

func (s *SQLiteStore) LatestMonthBefore(ctx context.Context, userID string, key core.MonthKey) (core.Month, error) {
	return scanMonth(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, year, month, created_at FROM months
		WHERE user_id = ? AND year * 100 + month < ?
		ORDER BY year * 100 + month DESC LIMIT 1`, userID, int(key)))
}

func (s *SQLiteStore) MonthsInRange(ctx context.Context, userID string, start, end core.MonthKey) ([]core.Month, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, year, month, created_at FROM months
		WHERE user_id = ? AND year * 100 + month BETWEEN ? AND ?
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

func (s *SQLiteStore) CreateMonthWithBalances(ctx context.Context, m core.Month, balances []core.OpeningBalance) (core.Month, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Month{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	m.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO months (user_id, year, month, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, year, month) DO NOTHING`,
		m.UserID, m.Year, m.Month, m.CreatedAt)
	if err != nil {
		return core.Month{}, false, fmt.Errorf("insert month: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Month{}, false, fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		// Lost the race or the month already existed: return it untouched.
		existing, err := scanMonth(tx.QueryRowContext(ctx,
			"SELECT id, user_id, year, month, created_at FROM months WHERE user_id = ? AND year = ? AND month = ?",
			m.UserID, m.Year, m.Month))
		if err != nil {
			return core.Month{}, false, err
		}
		if err := tx.Commit(); err != nil {
			return core.Month{}, false, fmt.Errorf("commit: %w", err)
		}
		return existing, false, nil
	}

	m.ID, err = res.LastInsertId()
	if err != nil {
		return core.Month{}, false, fmt.Errorf("month id: %w", err)
	}

	for _, b := range balances {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO opening_balances (month_id, account_id, amount_cents, base_amount_cents)
			VALUES (?, ?, ?, ?)`,
			m.ID, b.AccountID, b.AmountCents, b.BaseAmountCents)
		if err != nil {
			return core.Month{}, false, fmt.Errorf("insert opening balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Month{}, false, fmt.Errorf("commit: %w", err)
	}
	return m, true, nil
}

func (s *SQLiteStore) ListOpeningBalances(ctx context.Context, monthID int64) ([]core.OpeningBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, month_id, account_id, amount_cents, base_amount_cents
		FROM opening_balances WHERE month_id = ? ORDER BY account_id`, monthID)
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

func (s *SQLiteStore) insertTransaction(ctx context.Context, tx *sql.Tx, t *core.Transaction) error {
	t.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, category_id, note, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.CategoryID, t.Note, t.OccurredAt.UTC(), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) insertMovement(ctx context.Context, tx *sql.Tx, m *core.Movement) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO movements (transaction_id, account_id, amount_cents, exchange_rate, base_amount_cents, transfer_peer_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.TransactionID, m.AccountID, m.AmountCents, m.Rate.String(), m.BaseAmountCents, m.TransferPeerID)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("movement id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateTransaction(ctx context.Context, t core.Transaction, movements []core.Movement) (TransactionWithMovements, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TransactionWithMovements{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertTransaction(ctx, tx, &t); err != nil {
		return TransactionWithMovements{}, err
	}
	for i := range movements {
		movements[i].TransactionID = t.ID
		if err := s.insertMovement(ctx, tx, &movements[i]); err != nil {
			return TransactionWithMovements{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return TransactionWithMovements{}, fmt.Errorf("commit: %w", err)
	}
	return TransactionWithMovements{Transaction: t, Movements: movements}, nil
}

func (s *SQLiteStore) CreateTransfer(ctx context.Context, t core.Transaction, out, in core.Movement) (TransactionWithMovements, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TransactionWithMovements{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

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

	// Cross-link the two legs so either side can find its peer.
	if _, err := tx.ExecContext(ctx,
		"UPDATE movements SET transfer_peer_id = ? WHERE id = ?", in.ID, out.ID); err != nil {
		return TransactionWithMovements{}, fmt.Errorf("link transfer out leg: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE movements SET transfer_peer_id = ? WHERE id = ?", out.ID, in.ID); err != nil {
		return TransactionWithMovements{}, fmt.Errorf("link transfer in leg: %w", err)
	}
	out.TransferPeerID, in.TransferPeerID = &in.ID, &out.ID

	if err := tx.Commit(); err != nil {
		return TransactionWithMovements{}, fmt.Errorf("commit: %w", err)
	}
	return TransactionWithMovements{Transaction: t, Movements: []core.Movement{out, in}}, nil
}

func scanMovement(row rowScanner) (core.Movement, error) {
	var m core.Movement
	var rate string
	err := row.Scan(&m.ID, &m.TransactionID, &m.AccountID, &m.AmountCents, &rate, &m.BaseAmountCents, &m.TransferPeerID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Movement{}, core.ErrNotFound
	}
	if err != nil {
		return core.Movement{}, fmt.Errorf("scan movement: %w", err)
	}
	m.Rate, err = decimal.NewFromString(rate)
	if err != nil {
		return core.Movement{}, fmt.Errorf("parse movement rate %q: %w", rate, err)
	}
	return m, nil
}

func (s *SQLiteStore) listMovements(ctx context.Context, transactionID int64) ([]core.Movement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, account_id, amount_cents, exchange_rate, base_amount_cents, transfer_peer_id
		FROM movements WHERE transaction_id = ? ORDER BY id`, transactionID)
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

func (s *SQLiteStore) GetTransaction(ctx context.Context, userID string, id int64) (TransactionWithMovements, error) {
	var t core.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, category_id, note, occurred_at, created_at
		FROM transactions WHERE user_id = ? AND id = ?`, userID, id,
	).Scan(&t.ID, &t.UserID, &t.CategoryID, &t.Note, &t.OccurredAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]TransactionWithMovements, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, note, occurred_at, created_at
		FROM transactions
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?
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

	for i := range result {
		movements, err := s.listMovements(ctx, result[i].Transaction.ID)
		if err != nil {
			return nil, err
		}
		result[i].Movements = movements
	}
	return result, nil
}

func (s *SQLiteStore) UpdateTransaction(ctx context.Context, t core.Transaction, movements []core.Movement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE transactions SET category_id = ?, note = ?, occurred_at = ?
		WHERE user_id = ? AND id = ?`,
		t.CategoryID, t.Note, t.OccurredAt.UTC(), t.UserID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	for _, m := range movements {
		res, err := tx.ExecContext(ctx, `
			UPDATE movements SET account_id = ?, amount_cents = ?, exchange_rate = ?, base_amount_cents = ?
			WHERE id = ? AND transaction_id = ?`,
			m.AccountID, m.AmountCents, m.Rate.String(), m.BaseAmountCents, m.ID, t.ID)
		if err != nil {
			return fmt.Errorf("update movement: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) GetMovement(ctx context.Context, userID string, id int64) (core.Movement, error) {
	return scanMovement(s.db.QueryRowContext(ctx, `
		SELECT m.id, m.transaction_id, m.account_id, m.amount_cents, m.exchange_rate, m.base_amount_cents, m.transfer_peer_id
		FROM movements m
		JOIN transactions t ON t.id = m.transaction_id
		WHERE t.user_id = ? AND m.id = ?`, userID, id))
}

func (s *SQLiteStore) DeleteTransferByMovement(ctx context.Context, userID string, movementID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	m, err := scanMovement(tx.QueryRowContext(ctx, `
		SELECT m.id, m.transaction_id, m.account_id, m.amount_cents, m.exchange_rate, m.base_amount_cents, m.transfer_peer_id
		FROM movements m
		JOIN transactions t ON t.id = m.transaction_id
		WHERE t.user_id = ? AND m.id = ?`, userID, movementID))
	if err != nil {
		return err
	}
	if m.TransferPeerID == nil {
		return core.ErrNotTransfer
	}

	// Unlink both legs before removing rows so the self reference never
	// points at a deleted movement.
	if _, err := tx.ExecContext(ctx,
		"UPDATE movements SET transfer_peer_id = NULL WHERE id IN (?, ?)", m.ID, *m.TransferPeerID); err != nil {
		return fmt.Errorf("unlink transfer: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ?", m.TransactionID); err != nil {
		return fmt.Errorf("delete transfer transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Aggregations

func (s *SQLiteStore) SumMovementsByAccount(ctx context.Context, userID string, from, to time.Time) (map[int64]MovementSum, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.account_id, SUM(m.amount_cents), SUM(m.base_amount_cents)
		FROM movements m
		JOIN transactions t ON t.id = m.transaction_id
		WHERE t.user_id = ? AND t.occurred_at >= ? AND t.occurred_at < ?
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

func (s *SQLiteStore) ListMovementsInRange(ctx context.Context, userID string, from, to time.Time) ([]MovementRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.transaction_id, m.account_id, m.amount_cents, m.exchange_rate, m.base_amount_cents, m.transfer_peer_id,
		       t.category_id, t.occurred_at
		FROM movements m
		JOIN transactions t ON t.id = m.transaction_id
		WHERE t.user_id = ? AND t.occurred_at >= ? AND t.occurred_at < ?
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

func (s *SQLiteStore) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO budgets (user_id, month_id, category_id, planned_cents)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, month_id, category_id) DO UPDATE SET planned_cents = excluded.planned_cents
		RETURNING id`,
		b.UserID, b.MonthID, b.CategoryID, b.PlannedCents,
	).Scan(&b.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) ListBudgets(ctx context.Context, userID string, monthID int64) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, month_id, category_id, planned_cents
		FROM budgets WHERE user_id = ? AND month_id = ? ORDER BY category_id`, userID, monthID)
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

func (s *SQLiteStore) GetRate(ctx context.Context, date time.Time, from, to, source string) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT rate FROM fx_rates
		WHERE rate_date = ? AND from_currency = ? AND to_currency = ? AND source = ?`,
		date.UTC().Format(dateLayout), from, to, source,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteStore) PutRate(ctx context.Context, date time.Time, from, to, source string, rate decimal.Decimal) error {
	// Concurrent writers may race on the same key; first insert wins and
	// the duplicate is silently dropped.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fx_rates (rate_date, from_currency, to_currency, source, rate)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (rate_date, from_currency, to_currency, source) DO NOTHING`,
		date.UTC().Format(dateLayout), from, to, source, rate.String())
	if err != nil {
		return fmt.Errorf("put rate: %w", err)
	}
	return nil
}
