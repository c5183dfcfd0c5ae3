// Package ledger owns the business-scoped ledger: onboarding, record CRUD, the balance
// side effects of every mutation, and reconciliation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cassa/internal/balance"
	"cassa/internal/core"
	"cassa/internal/log"
)

// Scope is the explicit business context every Book operation runs under.
type Scope struct {
	BusinessID string
	OwnerID    string
}

// Service builds Books and runs the operations that are not bound to one business.
type Service struct {
	store  Store
	cache  Invalidator
	events Publisher
	locks  *keyedMutex
	now    func() time.Time
	logger *log.Logger
	audit  *log.Recorder
}

type Option func(*Service)

// WithInvalidator sets the report cache dropped after each mutation.
func WithInvalidator(i Invalidator) Option {
	return func(s *Service) {
		if i != nil {
			s.cache = i
		}
	}
}

// WithPublisher sets where committed mutations are announced.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentLedger)
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cache:  nopInvalidator{},
		events: nopPublisher{},
		locks:  newKeyedMutex(),
		now:    time.Now,
		logger: log.Default(log.ComponentLedger),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = log.NewRecorder(s.logger)
	return s
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Onboard creates the single business of an owner with zero balances.
func (s *Service) Onboard(ctx context.Context, ownerID, name string, t core.BusinessType) (core.Business, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return core.Business{}, &core.AuthorizationError{Reason: "missing owner identity"}
	}
	if err := core.ValidateProfile(name, t); err != nil {
		return core.Business{}, err
	}

	unlock := s.locks.Lock("owner:" + ownerID)
	defer unlock()

	_, err := s.store.BusinessByOwner(ctx, ownerID)
	switch {
	case err == nil:
		return core.Business{}, &core.ValidationError{Field: "owner_id", Err: core.ErrAlreadyOnboarded}
	case !core.IsNotFound(err):
		return core.Business{}, fmt.Errorf("lookup business: %w", err)
	}

	now := s.now().UTC()
	b := core.Business{
		ID:                 uuid.NewString(),
		OwnerID:            ownerID,
		Name:               strings.TrimSpace(name),
		Type:               t,
		CashBalance:        decimal.Zero,
		BankBalance:        decimal.Zero,
		SubscriptionStatus: core.SubscriptionTrial,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateBusiness(ctx, b); err != nil {
		return core.Business{}, fmt.Errorf("create business: %w", err)
	}

	s.logger.InfoContext(ctx, "Business onboarded",
		log.FieldBusinessID, b.ID,
		log.FieldOwnerID, ownerID,
		log.FieldOperation, log.OpOnboard)
	return b, nil
}

// BusinessForOwner resolves the business of an identity. Owners that have not
// onboarded yet get an AuthorizationError.
func (s *Service) BusinessForOwner(ctx context.Context, ownerID string) (core.Business, error) {
	if strings.TrimSpace(ownerID) == "" {
		return core.Business{}, &core.AuthorizationError{Reason: "missing owner identity"}
	}
	b, err := s.store.BusinessByOwner(ctx, ownerID)
	if core.IsNotFound(err) {
		return core.Business{}, &core.AuthorizationError{OwnerID: ownerID, Reason: "no business for owner"}
	}
	if err != nil {
		return core.Business{}, fmt.Errorf("lookup business: %w", err)
	}
	return b, nil
}

// Book returns the ledger of the business in scope.
func (s *Service) Book(scope Scope) *Book {
	return &Book{svc: s, scope: scope}
}

// BookForOwner resolves the owner's business and returns its ledger.
func (s *Service) BookForOwner(ctx context.Context, ownerID string) (*Book, error) {
	b, err := s.BusinessForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.Book(Scope{BusinessID: b.ID, OwnerID: ownerID}), nil
}

// Reconciliation is the outcome of comparing stored balances with a full replay.
type Reconciliation struct {
	BusinessID string        `json:"business_id"`
	Drift      balance.Drift `json:"drift"`
	Repaired   bool          `json:"repaired"`
}

// Reconcile recomputes the balances of a business from its whole ledger and stores
// them when they drifted.
func (s *Service) Reconcile(ctx context.Context, businessID string) (Reconciliation, error) {
	if businessID == "" {
		return Reconciliation{}, &core.ValidationError{Field: "business_id", Err: core.ErrMissingBusiness}
	}

	unlock := s.locks.Lock(businessID)
	defer unlock()

	rec := Reconciliation{BusinessID: businessID}
	err := s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.Business(ctx, businessID)
		if err != nil {
			return err
		}
		sales, err := tx.ListSales(ctx, businessID, core.AllTime)
		if err != nil {
			return err
		}
		expenses, err := tx.ListExpenses(ctx, businessID, core.AllTime)
		if err != nil {
			return err
		}
		rec.Drift = balance.Compare(b.Balances(), balance.Replay(sales, expenses))
		if !rec.Drift.Any() {
			return nil
		}
		rec.Repaired = true
		return tx.SetBalances(ctx, businessID, rec.Drift.Derived, s.now().UTC())
	})
	if err != nil {
		return Reconciliation{}, fmt.Errorf("reconcile %s: %w", businessID, err)
	}

	if rec.Repaired {
		s.cache.InvalidateBusiness(ctx, businessID)
		fields := log.NewFields().
			WithBusiness(businessID).
			WithOperation(log.OpReconcile).
			WithBalances(rec.Drift.Derived.Cash.String(), rec.Drift.Derived.Bank.String())
		s.logger.WarnContext(ctx, "Balance drift repaired",
			append(fields.ToSlice(), "cash_delta", rec.Drift.Cash.String(), "bank_delta", rec.Drift.Bank.String())...)
	}
	return rec, nil
}

// ReconcileAll reconciles every business. Failures do not stop the sweep; they are
// joined into the returned error.
func (s *Service) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	ids, err := s.store.ListBusinessIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	var (
		out  []Reconciliation
		errs []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rec, err := s.Reconcile(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rec)
	}
	return out, errors.Join(errs...)
}

func (s *Service) publish(ctx context.Context, ev core.LedgerEvent) {
	if err := s.events.PublishLedgerEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldBusinessID, ev.BusinessID,
			log.FieldRecordID, ev.RecordID,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}
