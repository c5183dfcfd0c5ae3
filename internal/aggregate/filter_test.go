package aggregate

import (
	"testing"

	"cassa/internal/core"
)

func TestSaleFilter(t *testing.T) {
	day := core.NewDate(2024, 6, 3)
	lunch := sale(day, "10", core.Cash)
	lunch.Description = "Lunch service"
	dinner := sale(day, "25", core.Bank)
	dinner.Description = "Dinner"
	blank := sale(day, "4", core.Cash)
	sales := []core.Sale{lunch, dinner, blank}

	tests := []struct {
		name      string
		filter    SaleFilter
		wantCount int
		wantCash  string
		wantBank  string
	}{
		{"no filter", SaleFilter{}, 3, "14", "25"},
		{"cash only", SaleFilter{Method: core.Cash}, 2, "14", "0"},
		{"query ignores case", SaleFilter{Query: "LUNCH"}, 1, "10", "0"},
		{"query and method", SaleFilter{Query: "dinner", Method: core.Cash}, 0, "0", "0"},
		{"blank query", SaleFilter{Query: "  "}, 3, "14", "25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(sales, tt.filter.Match)
			if len(got) != tt.wantCount {
				t.Fatalf("got %d sales, want %d", len(got), tt.wantCount)
			}
			byMethod := ByPaymentMethod(got)
			if !byMethod.Cash.Equal(dec(tt.wantCash)) || !byMethod.Bank.Equal(dec(tt.wantBank)) {
				t.Fatalf("by method = %+v, want cash %s bank %s", byMethod, tt.wantCash, tt.wantBank)
			}
		})
	}
}

func TestExpenseFilter(t *testing.T) {
	day := core.NewDate(2024, 6, 3)
	fish := expense(day, "30", core.Food, core.Cash)
	fish.Notes = "fish market"
	rent := expense(day, "800", core.Rent, core.Bank)
	wages := expense(day, "200", core.Staff, core.Bank)
	wages.Notes = "weekend waiter"
	expenses := []core.Expense{fish, rent, wages}

	tests := []struct {
		name   string
		filter ExpenseFilter
		want   []string
	}{
		{"no filter", ExpenseFilter{}, []string{"30", "800", "200"}},
		{"category", ExpenseFilter{Category: core.Rent}, []string{"800"}},
		{"query matches notes", ExpenseFilter{Query: "Fish"}, []string{"30"}},
		{"query matches category", ExpenseFilter{Query: "staff"}, []string{"200"}},
		{"method", ExpenseFilter{Method: core.Bank}, []string{"800", "200"}},
		{"category and query disagree", ExpenseFilter{Category: core.Food, Query: "waiter"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(expenses, tt.filter.Match)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d expenses, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if !e.Amount.Equal(dec(tt.want[i])) {
					t.Errorf("expense %d amount = %s, want %s", i, e.Amount, tt.want[i])
				}
			}
		})
	}
}
