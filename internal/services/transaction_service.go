package services

import (
	"context"
	"fmt"
	"time"

	"finify/internal/core"
	"finify/internal/fx"
	"finify/internal/storage"
)

// MovementInput is one movement line of an incoming transaction, in the
// account's native currency.
type MovementInput struct {
	AccountID   int64
	AmountCents int64
}

// TransactionInput is the write model for creating or updating a
// transaction. Base amounts are computed server-side at the occurrence
// date and frozen.
type TransactionInput struct {
	CategoryID *int64
	Note       string
	OccurredAt time.Time
	Movements  []MovementInput
}

// TransferInput moves AmountCents (positive, in the source account's
// currency) from one account to another.
type TransferInput struct {
	FromAccountID int64
	ToAccountID   int64
	AmountCents   int64
	Note          string
	OccurredAt    time.Time
}

// TransactionService records money movements with their frozen base
// conversion, so historic aggregates never shift when rates change.
type TransactionService struct {
	store    storage.Store
	resolver *fx.Resolver
	spot     *fx.SpotClient
	months   *MonthService
}

func NewTransactionService(store storage.Store, resolver *fx.Resolver, spot *fx.SpotClient, months *MonthService) *TransactionService {
	return &TransactionService{
		store:    store,
		resolver: resolver,
		spot:     spot,
		months:   months,
	}
}

// buildMovement freezes the base conversion of one movement at the given
// date. Fiat accounts use the historic FX rate, crypto accounts the
// current spot price.
func (s *TransactionService) buildMovement(ctx context.Context, batch *fx.Batch, base string, in MovementInput, userID string, date time.Time) (core.Movement, error) {
	if in.AmountCents == 0 {
		return core.Movement{}, core.ErrInvalidAmount
	}

	account, err := s.store.GetAccount(ctx, userID, in.AccountID)
	if err != nil {
		return core.Movement{}, fmt.Errorf("account %d: %w", in.AccountID, err)
	}

	m := core.Movement{
		AccountID:   account.ID,
		AmountCents: in.AmountCents,
	}

	if account.Kind == core.AccountCrypto {
		price, err := s.spot.Price(ctx, account.CoinID, base)
		if err != nil {
			return core.Movement{}, err
		}
		m.Rate = price
		m.BaseAmountCents = core.ConvertCents(in.AmountCents, price)
		return m, nil
	}

	res, err := batch.Resolve(ctx, date, account.Currency, base)
	if err != nil {
		return core.Movement{}, err
	}
	m.Rate = res.Rate
	m.BaseAmountCents = core.ConvertCents(in.AmountCents, res.Rate)
	return m, nil
}

// CreateTransaction validates and persists a transaction with its
// movement lines.
func (s *TransactionService) CreateTransaction(ctx context.Context, userID string, input TransactionInput) (storage.TransactionWithMovements, error) {
	if len(input.Movements) == 0 {
		return storage.TransactionWithMovements{}, fmt.Errorf("%w: transaction needs at least one movement", core.ErrInvalidAmount)
	}
	base, err := s.months.BaseCurrency(ctx, userID)
	if err != nil {
		return storage.TransactionWithMovements{}, err
	}

	batch := s.resolver.NewBatch()
	movements := make([]core.Movement, len(input.Movements))
	for i, in := range input.Movements {
		movements[i], err = s.buildMovement(ctx, batch, base, in, userID, input.OccurredAt)
		if err != nil {
			return storage.TransactionWithMovements{}, err
		}
	}

	return s.store.CreateTransaction(ctx, core.Transaction{
		UserID:     userID,
		CategoryID: input.CategoryID,
		Note:       input.Note,
		OccurredAt: input.OccurredAt,
	}, movements)
}

// GetTransaction returns one transaction with its movements.
func (s *TransactionService) GetTransaction(ctx context.Context, userID string, id int64) (storage.TransactionWithMovements, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

// ListTransactions returns the transactions of one calendar month.
func (s *TransactionService) ListTransactions(ctx context.Context, userID string, year, month int) ([]storage.TransactionWithMovements, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return nil, err
	}
	m := core.Month{Year: year, Month: month}
	return s.store.ListTransactions(ctx, userID, m.Start(), m.End())
}

// UpdateTransaction rewrites a transaction's shared fields and movement
// amounts, recomputing the frozen base conversion at the new date. The
// movement lines are matched positionally against the stored ones.
func (s *TransactionService) UpdateTransaction(ctx context.Context, userID string, id int64, input TransactionInput) (storage.TransactionWithMovements, error) {
	existing, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return storage.TransactionWithMovements{}, err
	}
	if len(input.Movements) != len(existing.Movements) {
		return storage.TransactionWithMovements{}, fmt.Errorf("%w: movement count mismatch", core.ErrInvalidAmount)
	}

	base, err := s.months.BaseCurrency(ctx, userID)
	if err != nil {
		return storage.TransactionWithMovements{}, err
	}

	batch := s.resolver.NewBatch()
	movements := make([]core.Movement, len(input.Movements))
	for i, in := range input.Movements {
		m, err := s.buildMovement(ctx, batch, base, in, userID, input.OccurredAt)
		if err != nil {
			return storage.TransactionWithMovements{}, err
		}
		m.ID = existing.Movements[i].ID
		m.TransactionID = id
		m.TransferPeerID = existing.Movements[i].TransferPeerID
		movements[i] = m
	}

	t := core.Transaction{
		ID:         id,
		UserID:     userID,
		CategoryID: input.CategoryID,
		Note:       input.Note,
		OccurredAt: input.OccurredAt,
	}
	if err := s.store.UpdateTransaction(ctx, t, movements); err != nil {
		return storage.TransactionWithMovements{}, err
	}
	return s.store.GetTransaction(ctx, userID, id)
}

// DeleteTransaction removes a transaction and its movements. Transfer
// transactions go through the unlink path so the symmetric reference is
// cleared first.
func (s *TransactionService) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	existing, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	for _, m := range existing.Movements {
		if m.TransferPeerID != nil {
			return s.store.DeleteTransferByMovement(ctx, userID, m.ID)
		}
	}
	return s.store.DeleteTransaction(ctx, userID, id)
}

// CreateTransfer records an internal move between two accounts as one
// transaction with two cross-linked movements. The destination amount is
// converted through the historic rate when the currencies differ.
func (s *TransactionService) CreateTransfer(ctx context.Context, userID string, input TransferInput) (storage.TransactionWithMovements, error) {
	if input.AmountCents <= 0 {
		return storage.TransactionWithMovements{}, core.ErrInvalidAmount
	}
	if input.FromAccountID == input.ToAccountID {
		return storage.TransactionWithMovements{}, core.ErrSameAccount
	}

	base, err := s.months.BaseCurrency(ctx, userID)
	if err != nil {
		return storage.TransactionWithMovements{}, err
	}
	from, err := s.store.GetAccount(ctx, userID, input.FromAccountID)
	if err != nil {
		return storage.TransactionWithMovements{}, fmt.Errorf("from account: %w", err)
	}
	to, err := s.store.GetAccount(ctx, userID, input.ToAccountID)
	if err != nil {
		return storage.TransactionWithMovements{}, fmt.Errorf("to account: %w", err)
	}

	batch := s.resolver.NewBatch()

	out, err := s.buildMovement(ctx, batch, base,
		MovementInput{AccountID: from.ID, AmountCents: -input.AmountCents}, userID, input.OccurredAt)
	if err != nil {
		return storage.TransactionWithMovements{}, err
	}

	inCents := input.AmountCents
	if to.Currency != from.Currency {
		res, err := batch.Resolve(ctx, input.OccurredAt, from.Currency, to.Currency)
		if err != nil {
			return storage.TransactionWithMovements{}, err
		}
		inCents = core.ConvertCents(input.AmountCents, res.Rate)
	}
	in, err := s.buildMovement(ctx, batch, base,
		MovementInput{AccountID: to.ID, AmountCents: inCents}, userID, input.OccurredAt)
	if err != nil {
		return storage.TransactionWithMovements{}, err
	}

	return s.store.CreateTransfer(ctx, core.Transaction{
		UserID:     userID,
		Note:       input.Note,
		OccurredAt: input.OccurredAt,
	}, out, in)
}

// DeleteTransfer removes both legs of a transfer given either movement.
func (s *TransactionService) DeleteTransfer(ctx context.Context, userID string, movementID int64) error {
	return s.store.DeleteTransferByMovement(ctx, userID, movementID)
}
