package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"cassa/internal/core"
	"cassa/internal/ledger"
	"cassa/internal/log"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository is the ledger store backed by a single SQLite file.
type SQLiteRepository struct {
	db            *sql.DB
	logger        *log.Logger
	schemaVersion uint
}

var _ ledger.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens dbPath, creating its directory, and migrates the schema.
// A nil logger discards.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard(log.ComponentStorage)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers; SQLite would otherwise fail lock upgrades
	// with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateSchema(dbPath, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger, schemaVersion: version}, nil
}

// SchemaVersion is the migration version the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint { return r.schemaVersion }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &core.PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const businessColumns = `id, owner_id, name, type, cash_balance, bank_balance, subscription_status, created_at, updated_at`

func (r *SQLiteRepository) BusinessByOwner(ctx context.Context, ownerID string) (core.Business, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE owner_id = ?`, ownerID)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Business{}, &core.NotFoundError{Kind: "business", ID: ownerID}
	}
	if err != nil {
		return core.Business{}, &core.PersistenceError{Op: "get business by owner", Err: err}
	}
	return b, nil
}

func (r *SQLiteRepository) BusinessByID(ctx context.Context, id string) (core.Business, error) {
	return getBusiness(ctx, r.db, id)
}

func (r *SQLiteRepository) CreateBusiness(ctx context.Context, b core.Business) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO businesses (`+businessColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Name, string(b.Type),
		core.FormatAmount(b.CashBalance), core.FormatAmount(b.BankBalance),
		string(b.SubscriptionStatus), formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if isUniqueViolation(err) {
		return &core.ValidationError{Field: "owner_id", Err: core.ErrAlreadyOnboarded}
	}
	if err != nil {
		return &core.PersistenceError{Op: "create business", Err: err}
	}

	r.logger.DebugContext(ctx, "Business saved to SQLite", log.FieldBusinessID, b.ID, "type", b.Type)
	return nil
}

func (r *SQLiteRepository) UpdateBusinessProfile(ctx context.Context, id, name string, t core.BusinessType, at time.Time) (core.Business, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE businesses SET name = ?, type = ?, updated_at = ? WHERE id = ?`,
		name, string(t), formatTime(at), id)
	if err != nil {
		return core.Business{}, &core.PersistenceError{Op: "update business", Err: err}
	}
	if err := expectOne(res, "business", id); err != nil {
		return core.Business{}, err
	}
	return getBusiness(ctx, r.db, id)
}

func (r *SQLiteRepository) ListBusinessIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM businesses ORDER BY id`)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list businesses", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &core.PersistenceError{Op: "scan business id", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.PersistenceError{Op: "list businesses", Err: err}
	}
	return ids, nil
}

func (r *SQLiteRepository) ListSales(ctx context.Context, businessID string, dr core.DateRange) ([]core.Sale, error) {
	return listSales(ctx, r.db, businessID, dr)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, businessID string, dr core.DateRange) ([]core.Expense, error) {
	return listExpenses(ctx, r.db, businessID, dr)
}

// InTx commits fn's writes together or not at all.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.PersistenceError{Op: "begin", Err: err}
	}
	if err := fn(&sqliteTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.ErrorContext(ctx, "Rollback failed", log.FieldError, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return &core.PersistenceError{Op: "commit", Err: err}
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Business(ctx context.Context, id string) (core.Business, error) {
	return getBusiness(ctx, t.tx, id)
}

func (t *sqliteTx) SetBalances(ctx context.Context, businessID string, b core.Balances, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE businesses SET cash_balance = ?, bank_balance = ?, updated_at = ? WHERE id = ?`,
		core.FormatAmount(b.Cash), core.FormatAmount(b.Bank), formatTime(at), businessID)
	if err != nil {
		return &core.PersistenceError{Op: "set balances", Err: err}
	}
	return expectOne(res, "business", businessID)
}

const saleColumns = `id, business_id, date, amount, payment_method, description, created_at, updated_at`

func (t *sqliteTx) Sale(ctx context.Context, businessID, id string) (core.Sale, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE business_id = ? AND id = ?`, businessID, id)
	s, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Sale{}, &core.NotFoundError{Kind: "sale", ID: id}
	}
	if err != nil {
		return core.Sale{}, &core.PersistenceError{Op: "get sale", Err: err}
	}
	return s, nil
}

func (t *sqliteTx) InsertSale(ctx context.Context, s core.Sale) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.BusinessID, s.Date.String(), core.FormatAmount(s.Amount), string(s.PaymentMethod),
		s.Description, formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return &core.PersistenceError{Op: "insert sale", Err: err}
	}
	return nil
}

func (t *sqliteTx) UpdateSale(ctx context.Context, s core.Sale) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sales SET date = ?, amount = ?, payment_method = ?, description = ?, updated_at = ?
		WHERE business_id = ? AND id = ?`,
		s.Date.String(), core.FormatAmount(s.Amount), string(s.PaymentMethod), s.Description,
		formatTime(s.UpdatedAt), s.BusinessID, s.ID)
	if err != nil {
		return &core.PersistenceError{Op: "update sale", Err: err}
	}
	return expectOne(res, "sale", s.ID)
}

func (t *sqliteTx) DeleteSale(ctx context.Context, businessID, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM sales WHERE business_id = ? AND id = ?`, businessID, id)
	if err != nil {
		return &core.PersistenceError{Op: "delete sale", Err: err}
	}
	return expectOne(res, "sale", id)
}

const expenseColumns = `id, business_id, date, category, amount, payment_method, notes, created_at, updated_at`

func (t *sqliteTx) Expense(ctx context.Context, businessID, id string) (core.Expense, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE business_id = ? AND id = ?`, businessID, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, &core.NotFoundError{Kind: "expense", ID: id}
	}
	if err != nil {
		return core.Expense{}, &core.PersistenceError{Op: "get expense", Err: err}
	}
	return e, nil
}

func (t *sqliteTx) InsertExpense(ctx context.Context, e core.Expense) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BusinessID, e.Date.String(), string(e.Category), core.FormatAmount(e.Amount),
		string(e.PaymentMethod), e.Notes, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return &core.PersistenceError{Op: "insert expense", Err: err}
	}
	return nil
}

func (t *sqliteTx) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE expenses SET date = ?, category = ?, amount = ?, payment_method = ?, notes = ?, updated_at = ?
		WHERE business_id = ? AND id = ?`,
		e.Date.String(), string(e.Category), core.FormatAmount(e.Amount), string(e.PaymentMethod),
		e.Notes, formatTime(e.UpdatedAt), e.BusinessID, e.ID)
	if err != nil {
		return &core.PersistenceError{Op: "update expense", Err: err}
	}
	return expectOne(res, "expense", e.ID)
}

func (t *sqliteTx) DeleteExpense(ctx context.Context, businessID, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM expenses WHERE business_id = ? AND id = ?`, businessID, id)
	if err != nil {
		return &core.PersistenceError{Op: "delete expense", Err: err}
	}
	return expectOne(res, "expense", id)
}

func (t *sqliteTx) ListSales(ctx context.Context, businessID string, dr core.DateRange) ([]core.Sale, error) {
	return listSales(ctx, t.tx, businessID, dr)
}

func (t *sqliteTx) ListExpenses(ctx context.Context, businessID string, dr core.DateRange) ([]core.Expense, error) {
	return listExpenses(ctx, t.tx, businessID, dr)
}

func getBusiness(ctx context.Context, q querier, id string) (core.Business, error) {
	row := q.QueryRowContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Business{}, &core.NotFoundError{Kind: "business", ID: id}
	}
	if err != nil {
		return core.Business{}, &core.PersistenceError{Op: "get business", Err: err}
	}
	return b, nil
}

// rangeFilter appends the optional inclusive date bounds of dr.
func rangeFilter(query string, args []any, dr core.DateRange) (string, []any) {
	var sb strings.Builder
	sb.WriteString(query)
	if !dr.Start.IsZero() {
		sb.WriteString(" AND date >= ?")
		args = append(args, dr.Start.String())
	}
	if !dr.End.IsZero() {
		sb.WriteString(" AND date <= ?")
		args = append(args, dr.End.String())
	}
	sb.WriteString(" ORDER BY date DESC, created_at DESC, id DESC")
	return sb.String(), args
}

func listSales(ctx context.Context, q querier, businessID string, dr core.DateRange) ([]core.Sale, error) {
	query, args := rangeFilter(`SELECT `+saleColumns+` FROM sales WHERE business_id = ?`, []any{businessID}, dr)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list sales", Err: err}
	}
	defer rows.Close()

	sales := make([]core.Sale, 0)
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, &core.PersistenceError{Op: "scan sale", Err: err}
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.PersistenceError{Op: "list sales", Err: err}
	}
	return sales, nil
}

func listExpenses(ctx context.Context, q querier, businessID string, dr core.DateRange) ([]core.Expense, error) {
	query, args := rangeFilter(`SELECT `+expenseColumns+` FROM expenses WHERE business_id = ?`, []any{businessID}, dr)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list expenses", Err: err}
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, &core.PersistenceError{Op: "scan expense", Err: err}
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.PersistenceError{Op: "list expenses", Err: err}
	}
	return expenses, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBusiness(row scanner) (core.Business, error) {
	var (
		b                    core.Business
		typ, status          string
		createdAt, updatedAt string
	)
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &typ, &b.CashBalance, &b.BankBalance, &status, &createdAt, &updatedAt)
	if err != nil {
		return core.Business{}, err
	}
	b.Type = core.BusinessType(typ)
	b.SubscriptionStatus = core.SubscriptionStatus(status)
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Business{}, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Business{}, err
	}
	return b, nil
}

func scanSale(row scanner) (core.Sale, error) {
	var (
		s                    core.Sale
		date, method         string
		createdAt, updatedAt string
	)
	if err := row.Scan(&s.ID, &s.BusinessID, &date, &s.Amount, &method, &s.Description, &createdAt, &updatedAt); err != nil {
		return core.Sale{}, err
	}
	var err error
	if s.Date, err = core.ParseDate(date); err != nil {
		return core.Sale{}, fmt.Errorf("sale %s date %q: %w", s.ID, date, err)
	}
	s.PaymentMethod = core.PaymentMethod(method)
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Sale{}, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Sale{}, err
	}
	return s, nil
}

func scanExpense(row scanner) (core.Expense, error) {
	var (
		e                      core.Expense
		date, category, method string
		createdAt, updatedAt   string
	)
	if err := row.Scan(&e.ID, &e.BusinessID, &date, &category, &e.Amount, &method, &e.Notes, &createdAt, &updatedAt); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s date %q: %w", e.ID, date, err)
	}
	e.Category = core.ExpenseCategory(category)
	e.PaymentMethod = core.PaymentMethod(method)
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Expense{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &core.PersistenceError{Op: "rows affected", Err: err}
	}
	if n == 0 {
		return &core.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
