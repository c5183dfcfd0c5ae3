package aggregate

import (
	"strings"

	"cassa/internal/core"
)

// SaleFilter narrows a list of sales. Zero fields match everything.
type SaleFilter struct {
	Method core.PaymentMethod
	// Query is matched case-insensitively against the description.
	Query string
}

// ExpenseFilter narrows a list of expenses. Zero fields match everything.
type ExpenseFilter struct {
	Category core.ExpenseCategory
	Method   core.PaymentMethod
	// Query is matched case-insensitively against the notes and the category.
	Query string
}

func (f SaleFilter) Match(s core.Sale) bool {
	if f.Method != "" && s.PaymentMethod != f.Method {
		return false
	}
	return contains(s.Description, f.Query)
}

func (f ExpenseFilter) Match(e core.Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Method != "" && e.PaymentMethod != f.Method {
		return false
	}
	return contains(e.Notes, f.Query) || contains(string(e.Category), f.Query)
}

// Filter keeps the records accepted by match, in their original order.
func Filter[T any](records []T, match func(T) bool) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

func contains(text, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}
