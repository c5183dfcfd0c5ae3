// Package aggregate reduces already-fetched ledger records into summaries.
//
// Every function here is pure and independent of input order. Only DailySeries
// guarantees an output order.
package aggregate

import (
	"github.com/shopspring/decimal"

	"cassa/internal/core"
)

// Entry is a ledger record as seen by the reductions.
type Entry interface {
	Effect() core.Effect
	OnDate() core.Date
}

// Summary holds period totals. NetProfit keeps its sign.
type Summary struct {
	TotalSales    decimal.Decimal `json:"totalSales"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	NetProfit     decimal.Decimal `json:"netProfit"`
}

// MethodTotals always reports both payment methods.
type MethodTotals struct {
	Cash decimal.Decimal `json:"cash"`
	Bank decimal.Decimal `json:"bank"`
}

// Total returns cash plus bank.
func (m MethodTotals) Total() decimal.Decimal {
	return m.Cash.Add(m.Bank)
}

// DayPoint is one bucket of a daily series.
type DayPoint struct {
	Date          core.Date       `json:"date"`
	SalesTotal    decimal.Decimal `json:"salesTotal"`
	ExpensesTotal decimal.Decimal `json:"expensesTotal"`
}

// DayTotals is the amount and number of records falling on one day.
type DayTotals struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

func sum[T Entry](records []T) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Effect().Amount)
	}
	return total
}

// Totals sums sales and expenses and derives the net profit.
func Totals(sales []core.Sale, expenses []core.Expense) Summary {
	ts := sum(sales)
	te := sum(expenses)
	return Summary{TotalSales: ts, TotalExpenses: te, NetProfit: ts.Sub(te)}
}

// ByPaymentMethod partitions records by payment method. A missing method reports zero.
func ByPaymentMethod[T Entry](records []T) MethodTotals {
	out := MethodTotals{Cash: decimal.Zero, Bank: decimal.Zero}
	for _, r := range records {
		e := r.Effect()
		switch e.Method {
		case core.Cash:
			out.Cash = out.Cash.Add(e.Amount)
		case core.Bank:
			out.Bank = out.Bank.Add(e.Amount)
		}
	}
	return out
}

// ByCategory sums expenses per category. Categories without expenses are omitted.
func ByCategory(expenses []core.Expense) map[core.ExpenseCategory]decimal.Decimal {
	out := make(map[core.ExpenseCategory]decimal.Decimal)
	for _, e := range expenses {
		out[e.Category] = out[e.Category].Add(e.Amount)
	}
	return out
}

// DailySeries buckets records into dayCount consecutive days ending at anchor, oldest
// first. Days without records report zero. A dayCount below one yields an empty series.
func DailySeries(sales []core.Sale, expenses []core.Expense, dayCount int, anchor core.Date) []DayPoint {
	if dayCount < 1 {
		return []DayPoint{}
	}
	first := anchor.AddDays(-(dayCount - 1))
	points := make([]DayPoint, dayCount)
	index := make(map[string]int, dayCount)
	for i := range points {
		d := first.AddDays(i)
		points[i] = DayPoint{Date: d, SalesTotal: decimal.Zero, ExpensesTotal: decimal.Zero}
		index[d.String()] = i
	}
	for _, s := range sales {
		if i, ok := index[s.Date.String()]; ok {
			points[i].SalesTotal = points[i].SalesTotal.Add(s.Amount)
		}
	}
	for _, e := range expenses {
		if i, ok := index[e.Date.String()]; ok {
			points[i].ExpensesTotal = points[i].ExpensesTotal.Add(e.Amount)
		}
	}
	return points
}

// TodayTotals sums the records dated exactly today.
func TodayTotals[T Entry](records []T, today core.Date) DayTotals {
	out := DayTotals{Amount: decimal.Zero}
	for _, r := range records {
		if !r.OnDate().Equal(today) {
			continue
		}
		out.Amount = out.Amount.Add(r.Effect().Amount)
		out.Count++
	}
	return out
}
