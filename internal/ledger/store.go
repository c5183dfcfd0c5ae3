package ledger

import (
	"context"
	"time"

	"cassa/internal/core"
)

// Store is the persistence port. Implementations return *core.NotFoundError for missing
// rows and *core.PersistenceError for store failures. Listings are ordered by date
// descending, newest created first within a day.
type Store interface {
	BusinessByOwner(ctx context.Context, ownerID string) (core.Business, error)
	BusinessByID(ctx context.Context, id string) (core.Business, error)
	CreateBusiness(ctx context.Context, b core.Business) error
	UpdateBusinessProfile(ctx context.Context, id, name string, t core.BusinessType, at time.Time) (core.Business, error)
	ListBusinessIDs(ctx context.Context) ([]string, error)

	ListSales(ctx context.Context, businessID string, r core.DateRange) ([]core.Sale, error)
	ListExpenses(ctx context.Context, businessID string, r core.DateRange) ([]core.Expense, error)

	// InTx runs fn atomically. Nothing fn wrote is visible when it returns an error.
	InTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the set of writes that must commit together with a balance change.
type Tx interface {
	Business(ctx context.Context, id string) (core.Business, error)
	SetBalances(ctx context.Context, businessID string, b core.Balances, at time.Time) error

	Sale(ctx context.Context, businessID, id string) (core.Sale, error)
	InsertSale(ctx context.Context, s core.Sale) error
	UpdateSale(ctx context.Context, s core.Sale) error
	DeleteSale(ctx context.Context, businessID, id string) error

	Expense(ctx context.Context, businessID, id string) (core.Expense, error)
	InsertExpense(ctx context.Context, e core.Expense) error
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, businessID, id string) error

	ListSales(ctx context.Context, businessID string, r core.DateRange) ([]core.Sale, error)
	ListExpenses(ctx context.Context, businessID string, r core.DateRange) ([]core.Expense, error)
}

// Invalidator drops cached reports of a business after its ledger changed.
type Invalidator interface {
	InvalidateBusiness(ctx context.Context, businessID string)
}

// Publisher announces committed ledger mutations.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateBusiness(context.Context, string) {}

type nopPublisher struct{}

func (nopPublisher) PublishLedgerEvent(context.Context, core.LedgerEvent) error { return nil }
