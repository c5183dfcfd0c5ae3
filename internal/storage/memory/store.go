// Package memory is an in-process ledger store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cassa/internal/core"
	"cassa/internal/ledger"
)

type state struct {
	businesses map[string]core.Business
	owners     map[string]string
	sales      map[string]core.Sale
	expenses   map[string]core.Expense
}

func newState() *state {
	return &state{
		businesses: make(map[string]core.Business),
		owners:     make(map[string]string),
		sales:      make(map[string]core.Sale),
		expenses:   make(map[string]core.Expense),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.businesses {
		c.businesses[k] = v
	}
	for k, v := range s.owners {
		c.owners[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.expenses {
		c.expenses[k] = v
	}
	return c
}

// Store keeps the ledger in maps. Transactions work on a copy that replaces the live
// state only when the transaction function succeeds.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	st      *state
	faults  map[string]error
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), faults: make(map[string]error)}
}

// Fail makes the next call of op return err wrapped in a PersistenceError. Op names
// are the method names, e.g. "SetBalances".
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return &core.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.fault("Ping"); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Store) BusinessByOwner(ctx context.Context, ownerID string) (core.Business, error) {
	if err := s.fault("BusinessByOwner"); err != nil {
		return core.Business{}, err
	}
	st := s.snapshot()
	id, ok := st.owners[ownerID]
	if !ok {
		return core.Business{}, &core.NotFoundError{Kind: "business", ID: ownerID}
	}
	return st.businesses[id], nil
}

func (s *Store) BusinessByID(ctx context.Context, id string) (core.Business, error) {
	if err := s.fault("BusinessByID"); err != nil {
		return core.Business{}, err
	}
	return business(s.snapshot(), id)
}

func (s *Store) CreateBusiness(ctx context.Context, b core.Business) error {
	return s.InTx(ctx, func(tx ledger.Tx) error {
		st := tx.(*memTx).st
		if _, ok := st.owners[b.OwnerID]; ok {
			return &core.ValidationError{Field: "owner_id", Err: core.ErrAlreadyOnboarded}
		}
		if err := s.fault("CreateBusiness"); err != nil {
			return err
		}
		st.businesses[b.ID] = b
		st.owners[b.OwnerID] = b.ID
		return nil
	})
}

func (s *Store) UpdateBusinessProfile(ctx context.Context, id, name string, t core.BusinessType, at time.Time) (core.Business, error) {
	var out core.Business
	err := s.InTx(ctx, func(tx ledger.Tx) error {
		st := tx.(*memTx).st
		b, err := business(st, id)
		if err != nil {
			return err
		}
		if err := s.fault("UpdateBusinessProfile"); err != nil {
			return err
		}
		b.Name = name
		b.Type = t
		b.UpdatedAt = at
		st.businesses[id] = b
		out = b
		return nil
	})
	return out, err
}

func (s *Store) ListBusinessIDs(ctx context.Context) ([]string, error) {
	if err := s.fault("ListBusinessIDs"); err != nil {
		return nil, err
	}
	st := s.snapshot()
	ids := make([]string, 0, len(st.businesses))
	for id := range st.businesses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListSales(ctx context.Context, businessID string, r core.DateRange) ([]core.Sale, error) {
	if err := s.fault("ListSales"); err != nil {
		return nil, err
	}
	return listSales(s.snapshot(), businessID, r), nil
}

func (s *Store) ListExpenses(ctx context.Context, businessID string, r core.DateRange) ([]core.Expense, error) {
	if err := s.fault("ListExpenses"); err != nil {
		return nil, err
	}
	return listExpenses(s.snapshot(), businessID, r), nil
}

// InTx serializes writers. Readers keep seeing the previous state until commit.
func (s *Store) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return &core.PersistenceError{Op: "begin", Err: err}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	work := s.snapshot().clone()
	if err := fn(&memTx{store: s, st: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

type memTx struct {
	store *Store
	st    *state
}

func (t *memTx) Business(ctx context.Context, id string) (core.Business, error) {
	if err := t.store.fault("Business"); err != nil {
		return core.Business{}, err
	}
	return business(t.st, id)
}

func (t *memTx) SetBalances(ctx context.Context, businessID string, b core.Balances, at time.Time) error {
	if err := t.store.fault("SetBalances"); err != nil {
		return err
	}
	biz, err := business(t.st, businessID)
	if err != nil {
		return err
	}
	biz.CashBalance = b.Cash
	biz.BankBalance = b.Bank
	biz.UpdatedAt = at
	t.st.businesses[businessID] = biz
	return nil
}

func (t *memTx) Sale(ctx context.Context, businessID, id string) (core.Sale, error) {
	s, ok := t.st.sales[id]
	if !ok || s.BusinessID != businessID {
		return core.Sale{}, &core.NotFoundError{Kind: "sale", ID: id}
	}
	return s, nil
}

func (t *memTx) InsertSale(ctx context.Context, s core.Sale) error {
	if err := t.store.fault("InsertSale"); err != nil {
		return err
	}
	t.st.sales[s.ID] = s
	return nil
}

func (t *memTx) UpdateSale(ctx context.Context, s core.Sale) error {
	if err := t.store.fault("UpdateSale"); err != nil {
		return err
	}
	if _, err := t.Sale(ctx, s.BusinessID, s.ID); err != nil {
		return err
	}
	t.st.sales[s.ID] = s
	return nil
}

func (t *memTx) DeleteSale(ctx context.Context, businessID, id string) error {
	if err := t.store.fault("DeleteSale"); err != nil {
		return err
	}
	if _, err := t.Sale(ctx, businessID, id); err != nil {
		return err
	}
	delete(t.st.sales, id)
	return nil
}

func (t *memTx) Expense(ctx context.Context, businessID, id string) (core.Expense, error) {
	e, ok := t.st.expenses[id]
	if !ok || e.BusinessID != businessID {
		return core.Expense{}, &core.NotFoundError{Kind: "expense", ID: id}
	}
	return e, nil
}

func (t *memTx) InsertExpense(ctx context.Context, e core.Expense) error {
	if err := t.store.fault("InsertExpense"); err != nil {
		return err
	}
	t.st.expenses[e.ID] = e
	return nil
}

func (t *memTx) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := t.store.fault("UpdateExpense"); err != nil {
		return err
	}
	if _, err := t.Expense(ctx, e.BusinessID, e.ID); err != nil {
		return err
	}
	t.st.expenses[e.ID] = e
	return nil
}

func (t *memTx) DeleteExpense(ctx context.Context, businessID, id string) error {
	if err := t.store.fault("DeleteExpense"); err != nil {
		return err
	}
	if _, err := t.Expense(ctx, businessID, id); err != nil {
		return err
	}
	delete(t.st.expenses, id)
	return nil
}

func (t *memTx) ListSales(ctx context.Context, businessID string, r core.DateRange) ([]core.Sale, error) {
	return listSales(t.st, businessID, r), nil
}

func (t *memTx) ListExpenses(ctx context.Context, businessID string, r core.DateRange) ([]core.Expense, error) {
	return listExpenses(t.st, businessID, r), nil
}

func business(st *state, id string) (core.Business, error) {
	b, ok := st.businesses[id]
	if !ok {
		return core.Business{}, &core.NotFoundError{Kind: "business", ID: id}
	}
	return b, nil
}

func listSales(st *state, businessID string, r core.DateRange) []core.Sale {
	out := make([]core.Sale, 0)
	for _, s := range st.sales {
		if s.BusinessID == businessID && r.Contains(s.Date) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].Date, out[i].CreatedAt, out[i].ID, out[j].Date, out[j].CreatedAt, out[j].ID)
	})
	return out
}

func listExpenses(st *state, businessID string, r core.DateRange) []core.Expense {
	out := make([]core.Expense, 0)
	for _, e := range st.expenses {
		if e.BusinessID == businessID && r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].Date, out[i].CreatedAt, out[i].ID, out[j].Date, out[j].CreatedAt, out[j].ID)
	})
	return out
}

// newer orders by date, then creation time, both descending. The id breaks exact ties.
func newer(d1 core.Date, c1 time.Time, id1 string, d2 core.Date, c2 time.Time, id2 string) bool {
	if !d1.Equal(d2) {
		return d1.After(d2)
	}
	if !c1.Equal(c2) {
		return c1.After(c2)
	}
	return id1 > id2
}
