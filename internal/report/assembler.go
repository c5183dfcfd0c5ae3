// Package report assembles profit-and-loss and dashboard views from a business ledger.
package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"cassa/internal/aggregate"
	"cassa/internal/core"
	"cassa/internal/ledger"
)

// SeriesDays is the length of the dashboard's daily series.
const SeriesDays = 7

// Source is the read side of a business ledger.
type Source interface {
	Scope() ledger.Scope
	ListSales(ctx context.Context, r core.DateRange) ([]core.Sale, error)
	ListExpenses(ctx context.Context, r core.DateRange) ([]core.Expense, error)
	Balances(ctx context.Context) (core.Balances, error)
}

// PnLReport is the profit-and-loss summary of one period.
type PnLReport struct {
	Range              core.DateRange                           `json:"range"`
	TotalSales         decimal.Decimal                          `json:"totalSales"`
	TotalExpenses      decimal.Decimal                          `json:"totalExpenses"`
	NetProfit          decimal.Decimal                          `json:"netProfit"`
	SalesByMethod      aggregate.MethodTotals                   `json:"salesByMethod"`
	ExpensesByMethod   aggregate.MethodTotals                   `json:"expensesByMethod"`
	ExpensesByCategory map[core.ExpenseCategory]decimal.Decimal `json:"expensesByCategory"`
}

// Dashboard is the landing view: balances, today's activity, the month so far and
// the last week day by day.
type Dashboard struct {
	Today         core.Date            `json:"today"`
	Balances      core.Balances        `json:"balances"`
	TodaySales    aggregate.DayTotals  `json:"todaySales"`
	TodayExpenses aggregate.DayTotals  `json:"todayExpenses"`
	Month         PnLReport            `json:"month"`
	Series        []aggregate.DayPoint `json:"series"`
}

// Assembler builds reports for the business of its source. A nil memo disables caching.
type Assembler struct {
	src  Source
	memo *Memo
}

func NewAssembler(src Source, memo *Memo) *Assembler {
	return &Assembler{src: src, memo: memo}
}

// BuildPnL reduces already-fetched records of r into a report.
func BuildPnL(r core.DateRange, sales []core.Sale, expenses []core.Expense) PnLReport {
	totals := aggregate.Totals(sales, expenses)
	return PnLReport{
		Range:              r,
		TotalSales:         totals.TotalSales,
		TotalExpenses:      totals.TotalExpenses,
		NetProfit:          totals.NetProfit,
		SalesByMethod:      aggregate.ByPaymentMethod(sales),
		ExpensesByMethod:   aggregate.ByPaymentMethod(expenses),
		ExpensesByCategory: aggregate.ByCategory(expenses),
	}
}

// PnL returns the profit-and-loss report of r.
func (a *Assembler) PnL(ctx context.Context, r core.DateRange) (PnLReport, error) {
	if err := r.Validate(); err != nil {
		return PnLReport{}, err
	}
	compute := func(ctx context.Context) (PnLReport, error) {
		sales, expenses, err := a.fetch(ctx, r)
		if err != nil {
			return PnLReport{}, err
		}
		return BuildPnL(r, sales, expenses), nil
	}
	if a.memo == nil {
		return compute(ctx)
	}
	id := a.src.Scope().BusinessID
	return remember(ctx, a.memo, a.memo.pnl, id, businessPrefix(id)+"pnl:"+r.Key(), compute)
}

// Dashboard returns the landing view for today. Only the record-derived part is
// memoized; balances are read on every call because another process may repair them.
func (a *Assembler) Dashboard(ctx context.Context, today core.Date) (Dashboard, error) {
	if err := today.Validate(); err != nil {
		return Dashboard{}, &core.ValidationError{Field: "today", Err: err}
	}
	compute := func(ctx context.Context) (Dashboard, error) {
		return a.buildDashboard(ctx, today)
	}

	var (
		d   Dashboard
		bal core.Balances
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if a.memo == nil {
			d, err = compute(gctx)
			return err
		}
		id := a.src.Scope().BusinessID
		d, err = remember(gctx, a.memo, a.memo.dash, id, businessPrefix(id)+"dash:"+today.String(), compute)
		return err
	})
	g.Go(func() error {
		var err error
		bal, err = a.src.Balances(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	d.Balances = bal
	return d, nil
}

// buildDashboard fills everything but Balances.
func (a *Assembler) buildDashboard(ctx context.Context, today core.Date) (Dashboard, error) {
	month := MonthOf(today)
	window := core.DateRange{Start: today.AddDays(-(SeriesDays - 1)), End: month.End}
	if month.Start.Before(window.Start) {
		window.Start = month.Start
	}

	sales, expenses, err := a.fetch(ctx, window)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Today:         today,
		TodaySales:    aggregate.TodayTotals(sales, today),
		TodayExpenses: aggregate.TodayTotals(expenses, today),
		Month:         BuildPnL(month, within(sales, month), within(expenses, month)),
		Series:        aggregate.DailySeries(sales, expenses, SeriesDays, today),
	}, nil
}

// fetch loads sales and expenses of r concurrently.
func (a *Assembler) fetch(ctx context.Context, r core.DateRange) ([]core.Sale, []core.Expense, error) {
	var (
		sales    []core.Sale
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, err = a.src.ListSales(gctx, r)
		if err != nil {
			return fmt.Errorf("list sales: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = a.src.ListExpenses(gctx, r)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sales, expenses, nil
}

func within[T aggregate.Entry](records []T, r core.DateRange) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if r.Contains(rec.OnDate()) {
			out = append(out, rec)
		}
	}
	return out
}
