package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"cassa/internal/auth"
	"cassa/internal/backend"
	"cassa/internal/config"
	"cassa/internal/core"
	"cassa/internal/ledger"
	"cassa/internal/log"
	"cassa/internal/report"
)

// app is the state shared by every cassactl command.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
	now    func() time.Time
	open   func(ctx context.Context) (*backend.BackendResult, error)
}

func (a *app) commands() []subcommands.Command {
	return []subcommands.Command{
		&balancesCmd{app: a},
		&reportCmd{app: a},
		&reconcileCmd{app: a},
		&tokenCmd{app: a},
	}
}

// withService opens the backend, runs fn and releases the backend.
func (a *app) withService(ctx context.Context, fn func(svc *ledger.Service, memo *report.Memo) error) error {
	res, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := res.Close(); cerr != nil {
			a.logger.Warn("Backend cleanup error", log.FieldError, cerr)
		}
	}()
	return fn(res.LedgerService(ledger.WithLogger(a.logger.WithComponent(log.ComponentLedger))), res.Backend.Memo)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if core.IsValidation(err) {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}

type balancesCmd struct {
	*app
	owner string
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "print the cash and bank balances of a business" }
func (*balancesCmd) Usage() string {
	return `cassactl balances -owner <id>

  Prints the current balances of the business owned by <id>.
`
}

func (c *balancesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "owner id of the business")
}

func (c *balancesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.owner) == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	err := c.withService(ctx, func(svc *ledger.Service, _ *report.Memo) error {
		book, err := svc.BookForOwner(ctx, c.owner)
		if err != nil {
			return err
		}
		bal, err := book.Balances(ctx)
		if err != nil {
			return err
		}
		return c.print(bal)
	})
	if err != nil {
		return c.fail(err)
	}
	return subcommands.ExitSuccess
}

type reportCmd struct {
	*app
	owner      string
	preset     string
	start, end string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print a profit and loss report" }
func (*reportCmd) Usage() string {
	return `cassactl report -owner <id> [-range today|week|month|custom] [-start YYYY-MM-DD -end YYYY-MM-DD]

  Prints the profit and loss of the business owned by <id> over a range. Presets are
  resolved against today in BUSINESS_TIMEZONE.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "owner id of the business")
	f.StringVar(&c.preset, "range", "month", "range preset (today, week, month, custom)")
	f.StringVar(&c.start, "start", "", "first day of a custom range")
	f.StringVar(&c.end, "end", "", "last day of a custom range")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.owner) == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	rng, err := c.resolve()
	if err != nil {
		return c.fail(err)
	}
	err = c.withService(ctx, func(svc *ledger.Service, memo *report.Memo) error {
		book, err := svc.BookForOwner(ctx, c.owner)
		if err != nil {
			return err
		}
		pnl, err := report.NewAssembler(book, memo).PnL(ctx, rng)
		if err != nil {
			return err
		}
		return c.print(pnl)
	})
	if err != nil {
		return c.fail(err)
	}
	return subcommands.ExitSuccess
}

func (c *reportCmd) resolve() (core.DateRange, error) {
	preset, err := report.ParsePreset(c.preset)
	if err != nil {
		return core.DateRange{}, err
	}
	var start, end core.Date
	if preset == report.Custom {
		if start, err = parseDateFlag("start", c.start); err != nil {
			return core.DateRange{}, err
		}
		if end, err = parseDateFlag("end", c.end); err != nil {
			return core.DateRange{}, err
		}
	}
	return report.Resolve(preset, report.TodayIn(c.now(), c.cfg.Location()), start, end)
}

func parseDateFlag(name, value string) (core.Date, error) {
	if value == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: name, Err: err}
	}
	return d, nil
}

type reconcileCmd struct {
	*app
	business string
	all      bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "recompute stored balances from the ledger" }
func (*reconcileCmd) Usage() string {
	return `cassactl reconcile -business <id> | -all

  Replays the ledger of one business, or of every business, and repairs stored
  balances that drifted.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.business, "business", "", "business id to reconcile")
	f.BoolVar(&c.all, "all", false, "reconcile every business")
}

func (c *reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.all == (c.business != "") {
		f.Usage()
		return subcommands.ExitUsageError
	}
	err := c.withService(ctx, func(svc *ledger.Service, _ *report.Memo) error {
		if !c.all {
			rec, err := svc.Reconcile(ctx, c.business)
			if err != nil {
				return err
			}
			return c.print([]ledger.Reconciliation{rec})
		}
		recs, err := svc.ReconcileAll(ctx)
		if recs == nil {
			recs = []ledger.Reconciliation{}
		}
		if perr := c.print(recs); perr != nil {
			return errors.Join(err, perr)
		}
		return err
	})
	if err != nil {
		return c.fail(err)
	}
	return subcommands.ExitSuccess
}

type tokenCmd struct {
	*app
	owner string
	ttl   time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue a bearer token for an owner" }
func (*tokenCmd) Usage() string {
	return `cassactl token -owner <id> [-ttl 24h]

  Signs a bearer token with AUTH_JWT_SECRET.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "owner id the token identifies")
	f.DurationVar(&c.ttl, "ttl", 24*time.Hour, "token lifetime")
}

func (c *tokenCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.owner) == "" || c.ttl <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a := auth.New(auth.Config{Secret: c.cfg.AuthJWTSecret, Issuer: c.cfg.AuthJWTIssuer}, c.logger.WithComponent(log.ComponentAuth))
	token, err := a.IssueToken(c.owner, c.ttl, c.now())
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.out, token)
	return subcommands.ExitSuccess
}
