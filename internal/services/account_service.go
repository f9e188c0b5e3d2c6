package services

import (
	"context"
	"errors"
	"strings"

	"finify/internal/core"
	"finify/internal/storage"
)

// AccountService covers the simple ownership-scoped CRUD around the
// carry-forward engine: accounts, categories, budgets and settings.
type AccountService struct {
	store storage.Store
}

func NewAccountService(store storage.Store) *AccountService {
	return &AccountService{store: store}
}

// CreateAccount validates and persists a new account. The kind defaults
// to bank when omitted.
func (s *AccountService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.Kind == "" {
		a.Kind = core.AccountBank
	}
	a.Active = true
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	return s.store.CreateAccount(ctx, a)
}

func (s *AccountService) GetAccount(ctx context.Context, userID string, id int64) (core.Account, error) {
	return s.store.GetAccount(ctx, userID, id)
}

func (s *AccountService) ListAccounts(ctx context.Context, userID string, activeOnly bool) ([]core.Account, error) {
	return s.store.ListAccounts(ctx, userID, activeOnly)
}

// UpdateAccount applies the changed fields and revalidates. Deactivated
// accounts drop out of future carry-forward runs but keep their history.
func (s *AccountService) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := s.store.UpdateAccount(ctx, a); err != nil {
		return core.Account{}, err
	}
	return s.store.GetAccount(ctx, a.UserID, a.ID)
}

// CreateCategory persists a new income or expense category.
func (s *AccountService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return core.Category{}, core.ErrEmptyName
	}
	if c.Type != "income" && c.Type != "expense" {
		c.Type = "expense"
	}
	return s.store.CreateCategory(ctx, c)
}

func (s *AccountService) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	return s.store.ListCategories(ctx, userID)
}

// UpsertBudget sets the planned amount for a (month, category) pair,
// replacing any previous plan.
func (s *AccountService) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.PlannedCents < 0 {
		return core.Budget{}, core.ErrInvalidAmount
	}
	if _, err := s.store.GetMonth(ctx, b.UserID, b.MonthID); err != nil {
		return core.Budget{}, err
	}
	return s.store.UpsertBudget(ctx, b)
}

func (s *AccountService) ListBudgets(ctx context.Context, userID string, monthID int64) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, userID, monthID)
}

// GetSettings returns the stored settings, or defaults when the user
// never saved any.
func (s *AccountService) GetSettings(ctx context.Context, userID, defaultBase string) (core.Settings, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Settings{UserID: userID, BaseCurrency: defaultBase}, nil
	}
	return settings, err
}

// PutSettings validates and stores the user's settings.
func (s *AccountService) PutSettings(ctx context.Context, settings core.Settings) error {
	if err := core.ValidateCurrency(settings.BaseCurrency); err != nil {
		return err
	}
	return s.store.PutSettings(ctx, settings)
}
