// Package balance holds the rules that keep a business's cash and bank balances in step
// with its ledger.
//
// A sale adds its amount to the balance of its payment method and an expense subtracts
// it. Balances are maintained incrementally by ApplyCreate, ApplyUpdate and ApplyDelete;
// Replay derives the same values from the full ledger and is the repair path.
package balance

import (
	"errors"

	"github.com/shopspring/decimal"

	"cassa/internal/core"
)

var errKindChange = errors.New("a record cannot change between sale and expense")

// sign returns +1 for sales and -1 for expenses.
func sign(k core.RecordKind) decimal.Decimal {
	if k == core.KindExpense {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

func shift(b core.Balances, m core.PaymentMethod, delta decimal.Decimal) core.Balances {
	switch m {
	case core.Bank:
		b.Bank = b.Bank.Add(delta)
	case core.Cash:
		b.Cash = b.Cash.Add(delta)
	}
	return b
}

// ApplyCreate returns b with the effect of a new record applied.
func ApplyCreate(b core.Balances, e core.Effect) (core.Balances, error) {
	if err := e.Validate(); err != nil {
		return b, err
	}
	return shift(b, e.Method, e.Amount.Mul(sign(e.Kind))), nil
}

// ApplyDelete returns b with the effect of a removed record reversed.
func ApplyDelete(b core.Balances, e core.Effect) (core.Balances, error) {
	if err := e.Validate(); err != nil {
		return b, err
	}
	return shift(b, e.Method, e.Amount.Mul(sign(e.Kind)).Neg()), nil
}

// ApplyUpdate reverses old and then applies updated. Amount changes and payment method
// moves are handled in the same pass. The kind of a record never changes.
func ApplyUpdate(b core.Balances, old, updated core.Effect) (core.Balances, error) {
	if err := old.Validate(); err != nil {
		return b, err
	}
	if err := updated.Validate(); err != nil {
		return b, err
	}
	if old.Kind != updated.Kind {
		return b, &core.ValidationError{Field: "kind", Err: errKindChange}
	}
	reverted, _ := ApplyDelete(b, old)
	return ApplyCreate(reverted, updated)
}

// Replay derives balances from a full ledger, starting from zero.
func Replay(sales []core.Sale, expenses []core.Expense) core.Balances {
	b := core.Balances{Cash: decimal.Zero, Bank: decimal.Zero}
	for _, s := range sales {
		b = shift(b, s.PaymentMethod, s.Amount)
	}
	for _, e := range expenses {
		b = shift(b, e.PaymentMethod, e.Amount.Neg())
	}
	return b
}

// Drift is the difference between stored and derived balances.
type Drift struct {
	Stored  core.Balances   `json:"stored"`
	Derived core.Balances   `json:"derived"`
	Cash    decimal.Decimal `json:"cash_delta"`
	Bank    decimal.Decimal `json:"bank_delta"`
}

// Any reports whether either balance drifted.
func (d Drift) Any() bool {
	return !d.Cash.IsZero() || !d.Bank.IsZero()
}

// Compare computes stored minus derived for each payment method.
func Compare(stored, derived core.Balances) Drift {
	return Drift{
		Stored:  stored,
		Derived: derived,
		Cash:    stored.Cash.Sub(derived.Cash),
		Bank:    stored.Bank.Sub(derived.Bank),
	}
}
