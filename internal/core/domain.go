package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Hotel      BusinessType = "HOTEL"
	Restaurant BusinessType = "RESTAURANT"

	Cash PaymentMethod = "CASH"
	Bank PaymentMethod = "BANK"

	Food        ExpenseCategory = "FOOD"
	Staff       ExpenseCategory = "STAFF"
	Electricity ExpenseCategory = "ELECTRICITY"
	Rent        ExpenseCategory = "RENT"
	Maintenance ExpenseCategory = "MAINTENANCE"
	Other       ExpenseCategory = "OTHER"

	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionInactive  SubscriptionStatus = "INACTIVE"
	SubscriptionTrial     SubscriptionStatus = "TRIAL"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"

	KindSale    RecordKind = "sale"
	KindExpense RecordKind = "expense"
)

// Field limits.
const (
	MaxTextLength = 500
	MaxNameLength = 120
)

type (
	BusinessType       string
	PaymentMethod      string
	ExpenseCategory    string
	SubscriptionStatus string

	// RecordKind distinguishes the two ledger record variants.
	RecordKind string

	Business struct {
		ID                 string             `json:"id"`
		OwnerID            string             `json:"owner_id"`
		Name               string             `json:"name"`
		Type               BusinessType       `json:"type"`
		CashBalance        decimal.Decimal    `json:"cash_balance"`
		BankBalance        decimal.Decimal    `json:"bank_balance"`
		SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
		CreatedAt          time.Time          `json:"created_at"`
		UpdatedAt          time.Time          `json:"updated_at"`
	}

	// Balances are the two running totals of a business.
	Balances struct {
		Cash decimal.Decimal `json:"cash_balance"`
		Bank decimal.Decimal `json:"bank_balance"`
	}

	Sale struct {
		ID            string          `json:"id"`
		BusinessID    string          `json:"business_id"`
		Date          Date            `json:"date"`
		Amount        decimal.Decimal `json:"amount"`
		PaymentMethod PaymentMethod   `json:"payment_method"`
		Description   string          `json:"description,omitempty"`
		CreatedAt     time.Time       `json:"created_at"`
		UpdatedAt     time.Time       `json:"updated_at"`
	}

	Expense struct {
		ID            string          `json:"id"`
		BusinessID    string          `json:"business_id"`
		Date          Date            `json:"date"`
		Category      ExpenseCategory `json:"category"`
		Amount        decimal.Decimal `json:"amount"`
		PaymentMethod PaymentMethod   `json:"payment_method"`
		Notes         string          `json:"notes,omitempty"`
		CreatedAt     time.Time       `json:"created_at"`
		UpdatedAt     time.Time       `json:"updated_at"`
	}

	// Effect is the part of a ledger record that moves a balance.
	Effect struct {
		Kind   RecordKind
		Amount decimal.Decimal
		Method PaymentMethod
	}

	// SalePatch holds the fields of a partial sale update; nil means unchanged.
	SalePatch struct {
		Date          *Date
		Amount        *decimal.Decimal
		PaymentMethod *PaymentMethod
		Description   *string
	}

	// ExpensePatch holds the fields of a partial expense update; nil means unchanged.
	ExpensePatch struct {
		Date          *Date
		Category      *ExpenseCategory
		Amount        *decimal.Decimal
		PaymentMethod *PaymentMethod
		Notes         *string
	}
)

var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrAmountPrecision  = errors.New("amount has more than two decimal places")
	ErrInvalidMethod    = errors.New("payment method must be CASH or BANK")
	ErrInvalidCategory  = errors.New("category must be one of FOOD, STAFF, ELECTRICITY, RENT, MAINTENANCE, OTHER")
	ErrInvalidType      = errors.New("business type must be HOTEL or RESTAURANT")
	ErrTextTooLong      = errors.New("text too long (max 500 characters)")
	ErrEmptyName        = errors.New("empty name")
	ErrNameTooLong      = errors.New("name too long (max 120 characters)")
	ErrMissingBusiness  = errors.New("missing business id")
	ErrAlreadyOnboarded = errors.New("owner already has a business")
	ErrEmptyPatch       = errors.New("nothing to update")
)

// PaymentMethods lists the payment methods in display order.
func PaymentMethods() []PaymentMethod { return []PaymentMethod{Cash, Bank} }

// ExpenseCategories lists the expense categories in display order.
func ExpenseCategories() []ExpenseCategory {
	return []ExpenseCategory{Food, Staff, Electricity, Rent, Maintenance, Other}
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case Cash, Bank:
		return true
	default:
		return false
	}
}

func (c ExpenseCategory) Valid() bool {
	switch c {
	case Food, Staff, Electricity, Rent, Maintenance, Other:
		return true
	default:
		return false
	}
}

func (t BusinessType) Valid() bool {
	switch t {
	case Hotel, Restaurant:
		return true
	default:
		return false
	}
}

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionInactive, SubscriptionTrial, SubscriptionCancelled:
		return true
	default:
		return false
	}
}

func (k RecordKind) Valid() bool {
	return k == KindSale || k == KindExpense
}

// ParsePaymentMethod accepts the wire value in any letter case.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", &ValidationError{Field: "payment_method", Err: ErrInvalidMethod}
	}
	return m, nil
}

// ParseExpenseCategory accepts the wire value in any letter case.
func ParseExpenseCategory(s string) (ExpenseCategory, error) {
	c := ExpenseCategory(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &ValidationError{Field: "category", Err: ErrInvalidCategory}
	}
	return c, nil
}

// ParseBusinessType accepts the wire value in any letter case.
func ParseBusinessType(s string) (BusinessType, error) {
	t := BusinessType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	return t, nil
}

// Balances returns the current running totals of the business.
func (b Business) Balances() Balances {
	return Balances{Cash: b.CashBalance, Bank: b.BankBalance}
}

// Of returns the balance held for the given payment method.
func (b Balances) Of(m PaymentMethod) decimal.Decimal {
	if m == Bank {
		return b.Bank
	}
	return b.Cash
}

// Equal reports whether both balances match numerically.
func (b Balances) Equal(o Balances) bool {
	return b.Cash.Equal(o.Cash) && b.Bank.Equal(o.Bank)
}

// ValidateAmount accepts strictly positive amounts that fit in AmountScale
// fractional digits, so every store keeps the exact value it was given.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if !d.Round(AmountScale).Equal(d) {
		return &ValidationError{Field: "amount", Err: ErrAmountPrecision}
	}
	return nil
}

func (e Effect) Validate() error {
	if !e.Kind.Valid() {
		return &ValidationError{Field: "kind", Err: errors.New("unknown record kind")}
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if !e.Method.Valid() {
		return &ValidationError{Field: "payment_method", Err: ErrInvalidMethod}
	}
	return nil
}

func (s Sale) Effect() Effect {
	return Effect{Kind: KindSale, Amount: s.Amount, Method: s.PaymentMethod}
}

// OnDate returns the calendar day the sale was recorded for.
func (s Sale) OnDate() Date { return s.Date }

func (e Expense) Effect() Effect {
	return Effect{Kind: KindExpense, Amount: e.Amount, Method: e.PaymentMethod}
}

// OnDate returns the calendar day the expense was recorded for.
func (e Expense) OnDate() Date { return e.Date }

func (s Sale) Validate() error {
	if err := s.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if err := ValidateAmount(s.Amount); err != nil {
		return err
	}
	if !s.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Err: ErrInvalidMethod}
	}
	if len(strings.TrimSpace(s.Description)) > MaxTextLength {
		return &ValidationError{Field: "description", Err: ErrTextTooLong}
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if !e.Category.Valid() {
		return &ValidationError{Field: "category", Err: ErrInvalidCategory}
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if !e.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Err: ErrInvalidMethod}
	}
	if len(strings.TrimSpace(e.Notes)) > MaxTextLength {
		return &ValidationError{Field: "notes", Err: ErrTextTooLong}
	}
	return nil
}

// ValidateProfile checks the editable business settings.
func ValidateProfile(name string, t BusinessType) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: "name", Err: ErrNameTooLong}
	}
	if !t.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	return nil
}

// Apply returns s with the non-nil patch fields replaced.
func (p SalePatch) Apply(s Sale) Sale {
	if p.Date != nil {
		s.Date = *p.Date
	}
	if p.Amount != nil {
		s.Amount = *p.Amount
	}
	if p.PaymentMethod != nil {
		s.PaymentMethod = *p.PaymentMethod
	}
	if p.Description != nil {
		s.Description = strings.TrimSpace(*p.Description)
	}
	return s
}

// Validate checks the fields present in the patch.
func (p SalePatch) Validate() error {
	if p.IsEmpty() {
		return &ValidationError{Field: "patch", Err: ErrEmptyPatch}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return &ValidationError{Field: "date", Err: err}
		}
	}
	if p.Amount != nil {
		if err := ValidateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Err: ErrInvalidMethod}
	}
	if p.Description != nil && len(strings.TrimSpace(*p.Description)) > MaxTextLength {
		return &ValidationError{Field: "description", Err: ErrTextTooLong}
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p SalePatch) IsEmpty() bool {
	return p.Date == nil && p.Amount == nil && p.PaymentMethod == nil && p.Description == nil
}

// Apply returns e with the non-nil patch fields replaced.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.PaymentMethod != nil {
		e.PaymentMethod = *p.PaymentMethod
	}
	if p.Notes != nil {
		e.Notes = strings.TrimSpace(*p.Notes)
	}
	return e
}

// Validate checks the fields present in the patch.
func (p ExpensePatch) Validate() error {
	if p.IsEmpty() {
		return &ValidationError{Field: "patch", Err: ErrEmptyPatch}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return &ValidationError{Field: "date", Err: err}
		}
	}
	if p.Category != nil && !p.Category.Valid() {
		return &ValidationError{Field: "category", Err: ErrInvalidCategory}
	}
	if p.Amount != nil {
		if err := ValidateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Err: ErrInvalidMethod}
	}
	if p.Notes != nil && len(strings.TrimSpace(*p.Notes)) > MaxTextLength {
		return &ValidationError{Field: "notes", Err: ErrTextTooLong}
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Date == nil && p.Category == nil && p.Amount == nil && p.PaymentMethod == nil && p.Notes == nil
}
