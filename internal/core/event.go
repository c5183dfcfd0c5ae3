package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger mutation operations.
const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

type Operation string

// LedgerEvent describes a committed ledger mutation. The snapshot fields hold the record
// state after the mutation, or before it for deletes.
type LedgerEvent struct {
	BusinessID    string          `json:"business_id"`
	Kind          RecordKind      `json:"kind"`
	Op            Operation       `json:"op"`
	RecordID      string          `json:"record_id"`
	Date          Date            `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Category      ExpenseCategory `json:"category,omitempty"`
	Note          string          `json:"note,omitempty"`
	Balances      Balances        `json:"balances"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// SaleEvent builds the event for a committed sale mutation.
func SaleEvent(op Operation, s Sale, b Balances, at time.Time) LedgerEvent {
	return LedgerEvent{
		BusinessID:    s.BusinessID,
		Kind:          KindSale,
		Op:            op,
		RecordID:      s.ID,
		Date:          s.Date,
		Amount:        s.Amount,
		PaymentMethod: s.PaymentMethod,
		Note:          s.Description,
		Balances:      b,
		OccurredAt:    at,
	}
}

// ExpenseEvent builds the event for a committed expense mutation.
func ExpenseEvent(op Operation, e Expense, b Balances, at time.Time) LedgerEvent {
	return LedgerEvent{
		BusinessID:    e.BusinessID,
		Kind:          KindExpense,
		Op:            op,
		RecordID:      e.ID,
		Date:          e.Date,
		Amount:        e.Amount,
		PaymentMethod: e.PaymentMethod,
		Category:      e.Category,
		Note:          e.Notes,
		Balances:      b,
		OccurredAt:    at,
	}
}
