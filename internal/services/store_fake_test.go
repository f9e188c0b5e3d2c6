package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finify/internal/core"
	"finify/internal/storage"
)

// fakeStore is an in-memory storage.Store with the same contract as the
// SQL backends: user scoping, first-writer-wins month creation and
// ErrNotFound on misses.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int64
	settings     map[string]core.Settings
	accounts     map[int64]core.Account
	categories   map[int64]core.Category
	months       map[int64]core.Month
	balances     map[int64][]core.OpeningBalance
	transactions map[int64]core.Transaction
	movements    map[int64]core.Movement
	budgets      map[int64]core.Budget
	rates        map[string]decimal.Decimal

	putRateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:     make(map[string]core.Settings),
		accounts:     make(map[int64]core.Account),
		categories:   make(map[int64]core.Category),
		months:       make(map[int64]core.Month),
		balances:     make(map[int64][]core.OpeningBalance),
		transactions: make(map[int64]core.Transaction),
		movements:    make(map[int64]core.Movement),
		budgets:      make(map[int64]core.Budget),
		rates:        make(map[string]decimal.Decimal),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) GetSettings(_ context.Context, userID string) (core.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[userID]
	if !ok {
		return core.Settings{}, core.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) PutSettings(_ context.Context, s core.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[s.UserID] = s
	return nil
}

func (f *fakeStore) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.id()
	f.accounts[a.ID] = a
	return a, nil
}

func (f *fakeStore) GetAccount(_ context.Context, userID string, id int64) (core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok || a.UserID != userID {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) ListAccounts(_ context.Context, userID string, activeOnly bool) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Account
	for id := int64(1); id <= f.nextID; id++ {
		a, ok := f.accounts[id]
		if !ok || a.UserID != userID {
			continue
		}
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) UpdateAccount(_ context.Context, a core.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.accounts[a.ID]
	if !ok || existing.UserID != a.UserID {
		return core.ErrNotFound
	}
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeStore) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeStore) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Category
	for id := int64(1); id <= f.nextID; id++ {
		if c, ok := f.categories[id]; ok && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetMonth(_ context.Context, userID string, id int64) (core.Month, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.months[id]
	if !ok || m.UserID != userID {
		return core.Month{}, core.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) GetMonthByKey(_ context.Context, userID string, year, month int) (core.Month, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.months {
		if m.UserID == userID && m.Year == year && m.Month == month {
			return m, nil
		}
	}
	return core.Month{}, core.ErrNotFound
}

func (f *fakeStore) LatestMonth(_ context.Context, userID string) (core.Month, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest core.Month
	found := false
	for _, m := range f.months {
		if m.UserID == userID && (!found || m.Key() > latest.Key()) {
			latest, found = m, true
		}
	}
	if !found {
		return core.Month{}, core.ErrNotFound
	}
	return latest, nil
}

func (f *fakeStore) LatestMonthBefore(_ context.Context, userID string, key core.MonthKey) (core.Month, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest core.Month
	found := false
	for _, m := range f.months {
		if m.UserID == userID && m.Key() < key && (!found || m.Key() > latest.Key()) {
			latest, found = m, true
		}
	}
	if !found {
		return core.Month{}, core.ErrNotFound
	}
	return latest, nil
}

func (f *fakeStore) MonthsInRange(_ context.Context, userID string, start, end core.MonthKey) ([]core.Month, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Month
	for key := start; key <= end; key++ {
		for _, m := range f.months {
			if m.UserID == userID && m.Key() == key {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMonthWithBalances(_ context.Context, m core.Month, balances []core.OpeningBalance) (core.Month, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.months {
		if existing.UserID == m.UserID && existing.Year == m.Year && existing.Month == m.Month {
			return existing, false, nil
		}
	}
	m.ID = f.id()
	m.CreatedAt = time.Now().UTC()
	f.months[m.ID] = m
	for i := range balances {
		balances[i].ID = f.id()
		balances[i].MonthID = m.ID
	}
	f.balances[m.ID] = append([]core.OpeningBalance(nil), balances...)
	return m, true, nil
}

func (f *fakeStore) ListOpeningBalances(_ context.Context, monthID int64) ([]core.OpeningBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.OpeningBalance(nil), f.balances[monthID]...), nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, t core.Transaction, movements []core.Movement) (storage.TransactionWithMovements, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.id()
	f.transactions[t.ID] = t
	for i := range movements {
		movements[i].ID = f.id()
		movements[i].TransactionID = t.ID
		f.movements[movements[i].ID] = movements[i]
	}
	return storage.TransactionWithMovements{Transaction: t, Movements: movements}, nil
}

func (f *fakeStore) CreateTransfer(ctx context.Context, t core.Transaction, out, in core.Movement) (storage.TransactionWithMovements, error) {
	res, err := f.CreateTransaction(ctx, t, []core.Movement{out, in})
	if err != nil {
		return storage.TransactionWithMovements{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, i := res.Movements[0], res.Movements[1]
	o.TransferPeerID, i.TransferPeerID = &i.ID, &o.ID
	f.movements[o.ID], f.movements[i.ID] = o, i
	res.Movements = []core.Movement{o, i}
	return res, nil
}

func (f *fakeStore) GetTransaction(_ context.Context, userID string, id int64) (storage.TransactionWithMovements, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[id]
	if !ok || t.UserID != userID {
		return storage.TransactionWithMovements{}, core.ErrNotFound
	}
	return storage.TransactionWithMovements{Transaction: t, Movements: f.movementsOf(id)}, nil
}

func (f *fakeStore) movementsOf(transactionID int64) []core.Movement {
	var out []core.Movement
	for id := int64(1); id <= f.nextID; id++ {
		if m, ok := f.movements[id]; ok && m.TransactionID == transactionID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeStore) ListTransactions(_ context.Context, userID string, from, to time.Time) ([]storage.TransactionWithMovements, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.TransactionWithMovements
	for id := int64(1); id <= f.nextID; id++ {
		t, ok := f.transactions[id]
		if !ok || t.UserID != userID {
			continue
		}
		if t.OccurredAt.Before(from) || !t.OccurredAt.Before(to) {
			continue
		}
		out = append(out, storage.TransactionWithMovements{Transaction: t, Movements: f.movementsOf(id)})
	}
	return out, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, t core.Transaction, movements []core.Movement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.transactions[t.ID]
	if !ok || existing.UserID != t.UserID {
		return core.ErrNotFound
	}
	t.CreatedAt = existing.CreatedAt
	f.transactions[t.ID] = t
	for _, m := range movements {
		if _, ok := f.movements[m.ID]; !ok {
			return core.ErrNotFound
		}
		f.movements[m.ID] = m
	}
	return nil
}

func (f *fakeStore) DeleteTransaction(_ context.Context, userID string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[id]
	if !ok || t.UserID != userID {
		return core.ErrNotFound
	}
	delete(f.transactions, id)
	for _, m := range f.movementsOf(id) {
		delete(f.movements, m.ID)
	}
	return nil
}

func (f *fakeStore) GetMovement(_ context.Context, userID string, id int64) (core.Movement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.movements[id]
	if !ok {
		return core.Movement{}, core.ErrNotFound
	}
	if t, ok := f.transactions[m.TransactionID]; !ok || t.UserID != userID {
		return core.Movement{}, core.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) DeleteTransferByMovement(ctx context.Context, userID string, movementID int64) error {
	m, err := f.GetMovement(ctx, userID, movementID)
	if err != nil {
		return err
	}
	if m.TransferPeerID == nil {
		return core.ErrNotTransfer
	}
	return f.DeleteTransaction(ctx, userID, m.TransactionID)
}

func (f *fakeStore) SumMovementsByAccount(_ context.Context, userID string, from, to time.Time) (map[int64]storage.MovementSum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sums := make(map[int64]storage.MovementSum)
	for _, m := range f.movements {
		t, ok := f.transactions[m.TransactionID]
		if !ok || t.UserID != userID {
			continue
		}
		if t.OccurredAt.Before(from) || !t.OccurredAt.Before(to) {
			continue
		}
		sum := sums[m.AccountID]
		sum.AmountCents += m.AmountCents
		sum.BaseAmountCents += m.BaseAmountCents
		sums[m.AccountID] = sum
	}
	return sums, nil
}

func (f *fakeStore) ListMovementsInRange(_ context.Context, userID string, from, to time.Time) ([]storage.MovementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.MovementRecord
	for id := int64(1); id <= f.nextID; id++ {
		m, ok := f.movements[id]
		if !ok {
			continue
		}
		t, ok := f.transactions[m.TransactionID]
		if !ok || t.UserID != userID {
			continue
		}
		if t.OccurredAt.Before(from) || !t.OccurredAt.Before(to) {
			continue
		}
		out = append(out, storage.MovementRecord{
			Movement:   m,
			CategoryID: t.CategoryID,
			OccurredAt: t.OccurredAt,
		})
	}
	return out, nil
}

func (f *fakeStore) UpsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.budgets {
		if existing.UserID == b.UserID && existing.MonthID == b.MonthID && existing.CategoryID == b.CategoryID {
			b.ID = id
			f.budgets[id] = b
			return b, nil
		}
	}
	b.ID = f.id()
	f.budgets[b.ID] = b
	return b, nil
}

func (f *fakeStore) ListBudgets(_ context.Context, userID string, monthID int64) ([]core.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Budget
	for id := int64(1); id <= f.nextID; id++ {
		if b, ok := f.budgets[id]; ok && b.UserID == userID && b.MonthID == monthID {
			out = append(out, b)
		}
	}
	return out, nil
}

func rateKey(date time.Time, from, to, source string) string {
	return date.Format("2006-01-02") + "|" + from + "|" + to + "|" + source
}

func (f *fakeStore) GetRate(_ context.Context, date time.Time, from, to, source string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rate, ok := f.rates[rateKey(date, from, to, source)]
	if !ok {
		return decimal.Decimal{}, core.ErrNotFound
	}
	return rate, nil
}

func (f *fakeStore) PutRate(_ context.Context, date time.Time, from, to, source string, rate decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putRateErr != nil {
		return f.putRateErr
	}
	key := rateKey(date, from, to, source)
	if _, ok := f.rates[key]; !ok {
		f.rates[key] = rate
	}
	return nil
}
