package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cassa/internal/balance"
	"cassa/internal/core"
)

// SaleInput is a new sale as submitted by the owner.
type SaleInput struct {
	Date          core.Date
	Amount        decimal.Decimal
	PaymentMethod core.PaymentMethod
	Description   string
}

// ExpenseInput is a new expense as submitted by the owner.
type ExpenseInput struct {
	Date          core.Date
	Category      core.ExpenseCategory
	Amount        decimal.Decimal
	PaymentMethod core.PaymentMethod
	Notes         string
}

// Book is the ledger of one business. Every read and write is scoped to it.
type Book struct {
	svc   *Service
	scope Scope
}

func (b *Book) Scope() Scope { return b.scope }

func (b *Book) Business(ctx context.Context) (core.Business, error) {
	if err := b.checkScope(); err != nil {
		return core.Business{}, err
	}
	return b.svc.store.BusinessByID(ctx, b.scope.BusinessID)
}

// Balances returns the last committed cash and bank balances.
func (b *Book) Balances(ctx context.Context) (core.Balances, error) {
	biz, err := b.Business(ctx)
	if err != nil {
		return core.Balances{}, err
	}
	return biz.Balances(), nil
}

// ListSales returns the sales inside r, newest first.
func (b *Book) ListSales(ctx context.Context, r core.DateRange) ([]core.Sale, error) {
	if err := b.checkScope(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return b.svc.store.ListSales(ctx, b.scope.BusinessID, r)
}

// ListExpenses returns the expenses inside r, newest first.
func (b *Book) ListExpenses(ctx context.Context, r core.DateRange) ([]core.Expense, error) {
	if err := b.checkScope(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return b.svc.store.ListExpenses(ctx, b.scope.BusinessID, r)
}

func (b *Book) CreateSale(ctx context.Context, in SaleInput) (core.Sale, error) {
	if err := b.checkScope(); err != nil {
		return core.Sale{}, err
	}
	now := b.svc.now().UTC()
	s := core.Sale{
		ID:            uuid.NewString(),
		BusinessID:    b.scope.BusinessID,
		Date:          in.Date,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		Description:   strings.TrimSpace(in.Description),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Validate(); err != nil {
		return core.Sale{}, err
	}

	bal, err := b.mutate(ctx, func(tx Tx, cur core.Balances) (core.Balances, error) {
		if err := tx.InsertSale(ctx, s); err != nil {
			return cur, err
		}
		return balance.ApplyCreate(cur, s.Effect())
	})
	if err != nil {
		return core.Sale{}, fmt.Errorf("create sale: %w", err)
	}
	b.committed(ctx, core.SaleEvent(core.OpCreate, s, bal, now))
	return s, nil
}

// UpdateSale applies a partial update. The balance reversal uses the stored record as
// read inside the transaction.
func (b *Book) UpdateSale(ctx context.Context, id string, p core.SalePatch) (core.Sale, error) {
	if err := b.checkScope(); err != nil {
		return core.Sale{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Sale{}, err
	}
	now := b.svc.now().UTC()

	var updated core.Sale
	bal, err := b.mutate(ctx, func(tx Tx, cur core.Balances) (core.Balances, error) {
		old, err := tx.Sale(ctx, b.scope.BusinessID, id)
		if err != nil {
			return cur, err
		}
		updated = p.Apply(old)
		updated.UpdatedAt = now
		if err := updated.Validate(); err != nil {
			return cur, err
		}
		if err := tx.UpdateSale(ctx, updated); err != nil {
			return cur, err
		}
		return balance.ApplyUpdate(cur, old.Effect(), updated.Effect())
	})
	if err != nil {
		return core.Sale{}, fmt.Errorf("update sale: %w", err)
	}
	b.committed(ctx, core.SaleEvent(core.OpUpdate, updated, bal, now))
	return updated, nil
}

func (b *Book) DeleteSale(ctx context.Context, id string) error {
	if err := b.checkScope(); err != nil {
		return err
	}
	var gone core.Sale
	bal, err := b.mutate(ctx, func(tx Tx, cur core.Balances) (core.Balances, error) {
		old, err := tx.Sale(ctx, b.scope.BusinessID, id)
		if err != nil {
			return cur, err
		}
		gone = old
		if err := tx.DeleteSale(ctx, b.scope.BusinessID, id); err != nil {
			return cur, err
		}
		return balance.ApplyDelete(cur, old.Effect())
	})
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	b.committed(ctx, core.SaleEvent(core.OpDelete, gone, bal, b.svc.now().UTC()))
	return nil
}

func (b *Book) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	if err := b.checkScope(); err != nil {
		return core.Expense{}, err
	}
	now := b.svc.now().UTC()
	e := core.Expense{
		ID:            uuid.NewString(),
		BusinessID:    b.scope.BusinessID,
		Date:          in.Date,
		Category:      in.Category,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	bal, err := b.mutate(ctx, func(tx Tx, cur core.Balances) (core.Balances, error) {
		if err := tx.InsertExpense(ctx, e); err != nil {
			return cur, err
		}
		return balance.ApplyCreate(cur, e.Effect())
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	b.committed(ctx, core.ExpenseEvent(core.OpCreate, e, bal, now))
	return e, nil
}

// UpdateExpense applies a partial update. The balance reversal uses the stored record
// as read inside the transaction.
func (b *Book) UpdateExpense(ctx context.Context, id string, p core.ExpensePatch) (core.Expense, error) {
	if err := b.checkScope(); err != nil {
		return core.Expense{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Expense{}, err
	}
	now := b.svc.now().UTC()

	var updated core.Expense
	bal, err := b.mutate(ctx, func(tx Tx, cur core.Balances) (core.Balances, error) {
		old, err := tx.Expense(ctx, b.scope.BusinessID, id)
		if err != nil {
			return cur, err
		}
		updated = p.Apply(old)
		updated.UpdatedAt = now
		if err := updated.Validate(); err != nil {
			return cur, err
		}
		if err := tx.UpdateExpense(ctx, updated); err != nil {
			return cur, err
		}
		return balance.ApplyUpdate(cur, old.Effect(), updated.Effect())
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	b.committed(ctx, core.ExpenseEvent(core.OpUpdate, updated, bal, now))
	return updated, nil
}

func (b *Book) DeleteExpense(ctx context.Context, id string) error {
	if err := b.checkScope(); err != nil {
		return err
	}
	var gone core.Expense
	bal, err := b.mutate(ctx, func(tx Tx, cur core.Balances) (core.Balances, error) {
		old, err := tx.Expense(ctx, b.scope.BusinessID, id)
		if err != nil {
			return cur, err
		}
		gone = old
		if err := tx.DeleteExpense(ctx, b.scope.BusinessID, id); err != nil {
			return cur, err
		}
		return balance.ApplyDelete(cur, old.Effect())
	})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	b.committed(ctx, core.ExpenseEvent(core.OpDelete, gone, bal, b.svc.now().UTC()))
	return nil
}

// Reconcile replays the ledger of this business and repairs drifted balances.
func (b *Book) Reconcile(ctx context.Context) (Reconciliation, error) {
	if err := b.checkScope(); err != nil {
		return Reconciliation{}, err
	}
	return b.svc.Reconcile(ctx, b.scope.BusinessID)
}

// UpdateProfile changes the business name and type. Balances are untouched.
func (b *Book) UpdateProfile(ctx context.Context, name string, t core.BusinessType) (core.Business, error) {
	if err := b.checkScope(); err != nil {
		return core.Business{}, err
	}
	if err := core.ValidateProfile(name, t); err != nil {
		return core.Business{}, err
	}
	biz, err := b.svc.store.UpdateBusinessProfile(ctx, b.scope.BusinessID, strings.TrimSpace(name), t, b.svc.now().UTC())
	if err != nil {
		return core.Business{}, fmt.Errorf("update business: %w", err)
	}
	b.svc.cache.InvalidateBusiness(ctx, b.scope.BusinessID)
	return biz, nil
}

func (b *Book) checkScope() error {
	if b.scope.BusinessID == "" {
		return &core.AuthorizationError{OwnerID: b.scope.OwnerID, Reason: "no business in scope"}
	}
	return nil
}

// mutate runs one balance-affecting write under the business lock. fn receives the
// stored balances and returns the new ones, which commit with its writes.
func (b *Book) mutate(ctx context.Context, fn func(tx Tx, cur core.Balances) (core.Balances, error)) (core.Balances, error) {
	unlock := b.svc.locks.Lock(b.scope.BusinessID)
	defer unlock()

	var next core.Balances
	err := b.svc.store.InTx(ctx, func(tx Tx) error {
		biz, err := tx.Business(ctx, b.scope.BusinessID)
		if err != nil {
			return err
		}
		next, err = fn(tx, biz.Balances())
		if err != nil {
			return err
		}
		return tx.SetBalances(ctx, biz.ID, next, b.svc.now().UTC())
	})
	if err != nil {
		return core.Balances{}, err
	}
	b.svc.cache.InvalidateBusiness(ctx, b.scope.BusinessID)
	return next, nil
}

func (b *Book) committed(ctx context.Context, ev core.LedgerEvent) {
	b.svc.audit.RecordCommitted(ctx, string(ev.Op), ev.BusinessID, string(ev.Kind), ev.RecordID,
		core.FormatAmount(ev.Amount), string(ev.PaymentMethod))
	b.svc.publish(ctx, ev)
}
