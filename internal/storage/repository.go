package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"budgetview/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ActivityEntry is an audit record of a change to the ledger or settings.
type ActivityEntry struct {
	ID         int64     `json:"id"`
	EventType  string    `json:"event_type"`
	Payload    string    `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTransaction inserts a ledger entry and returns its assigned ID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (tx_date, description, amount_cents, payment_source, category, subcategory)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Date.String(), t.Description, t.Amount.Cents, t.PaymentSource, t.Category, t.Subcategory)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"date", t.Date.String(),
		"amount_cents", t.Amount.Cents,
		"category", t.Category)

	return id, nil
}

// GetTransaction retrieves a single transaction by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, tx_date, description, amount_cents, payment_source, category, subcategory
		 FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// DeleteTransaction removes a ledger entry. Returns ErrNotFound if no row matched.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// UpdateTransactionCategory reclassifies a ledger entry.
func (r *SQLiteRepository) UpdateTransactionCategory(ctx context.Context, id int64, category, subcategory string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category = ?, subcategory = ? WHERE id = ?`,
		category, subcategory, id)
	if err != nil {
		return fmt.Errorf("update transaction category: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction reclassified",
		"id", id, "category", category, "subcategory", subcategory)
	return nil
}

// ListTransactions returns transactions ordered by date then ID.
// year == 0 lists the whole ledger.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, year int) ([]core.Transaction, error) {
	query := `SELECT id, tx_date, description, amount_cents, payment_source, category, subcategory
		 FROM transactions`
	args := []any{}
	if year != 0 {
		query += ` WHERE tx_date >= ? AND tx_date <= ?`
		args = append(args, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	}
	query += ` ORDER BY tx_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return txs, nil
}

// ImportTransactions inserts a batch of entries in one database transaction.
// Returns the number of rows inserted; a failure rolls back the whole batch.
func (r *SQLiteRepository) ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx,
		`INSERT INTO transactions (tx_date, description, amount_cents, payment_source, category, subcategory)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for i, t := range txs {
		if _, err := stmt.ExecContext(ctx,
			t.Date.String(), t.Description, t.Amount.Cents, t.PaymentSource, t.Category, t.Subcategory); err != nil {
			return 0, fmt.Errorf("import row %d: %w", i+1, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Transactions imported", "count", len(txs))
	return len(txs), nil
}

// ListPaymentSources returns the distinct non-empty payment sources seen in the ledger.
func (r *SQLiteRepository) ListPaymentSources(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT payment_source FROM transactions WHERE payment_source <> '' ORDER BY payment_source`)
	if err != nil {
		return nil, fmt.Errorf("list payment sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan payment source: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payment sources: %w", err)
	}

	return sources, nil
}

// GetSettings loads the category tree, budget rows and currency.
func (r *SQLiteRepository) GetSettings(ctx context.Context) (core.Settings, error) {
	settings := core.Settings{}

	catRows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name FROM categories c ORDER BY c.position, c.id`)
	if err != nil {
		return settings, fmt.Errorf("list categories: %w", err)
	}
	defer catRows.Close()

	var catIDs []int64
	for catRows.Next() {
		var id int64
		var name string
		if err := catRows.Scan(&id, &name); err != nil {
			return settings, fmt.Errorf("scan category: %w", err)
		}
		catIDs = append(catIDs, id)
		settings.Categories = append(settings.Categories, core.Category{Name: name})
	}
	if err := catRows.Err(); err != nil {
		return settings, fmt.Errorf("list categories: %w", err)
	}

	for i, id := range catIDs {
		subs, err := r.listSubcategories(ctx, id)
		if err != nil {
			return settings, err
		}
		settings.Categories[i].Subcategories = subs
	}

	budgetRows, err := r.db.QueryContext(ctx,
		`SELECT category, amount_cents, year, months FROM budgets ORDER BY position, id`)
	if err != nil {
		return settings, fmt.Errorf("list budgets: %w", err)
	}
	defer budgetRows.Close()

	for budgetRows.Next() {
		var (
			category string
			cents    int64
			year     sql.NullInt64
			months   string
		)
		if err := budgetRows.Scan(&category, &cents, &year, &months); err != nil {
			return settings, fmt.Errorf("scan budget: %w", err)
		}

		b := core.Budget{
			Category: category,
			Amount:   core.Money{Cents: cents},
			Months:   decodeMonths(months),
		}
		if year.Valid {
			b.Year = int(year.Int64)
		}
		settings.Budgets = append(settings.Budgets, b)
	}
	if err := budgetRows.Err(); err != nil {
		return settings, fmt.Errorf("list budgets: %w", err)
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT currency FROM profile WHERE id = 1`).Scan(&settings.Currency); err != nil {
		return settings, fmt.Errorf("get currency: %w", err)
	}

	return settings, nil
}

// SaveSettings replaces categories, budgets and currency atomically.
func (r *SQLiteRepository) SaveSettings(ctx context.Context, settings core.Settings) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save settings: %w", err)
	}
	defer dbTx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM subcategories`,
		`DELETE FROM categories`,
		`DELETE FROM budgets`,
	} {
		if _, err := dbTx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear settings: %w", err)
		}
	}

	for pos, cat := range settings.Categories {
		res, err := dbTx.ExecContext(ctx,
			`INSERT INTO categories (name, position) VALUES (?, ?)`, cat.Name, pos)
		if err != nil {
			return fmt.Errorf("insert category %q: %w", cat.Name, err)
		}
		catID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("category id: %w", err)
		}
		for subPos, sub := range cat.Subcategories {
			if _, err := dbTx.ExecContext(ctx,
				`INSERT INTO subcategories (category_id, name, position) VALUES (?, ?, ?)`,
				catID, sub, subPos); err != nil {
				return fmt.Errorf("insert subcategory %q: %w", sub, err)
			}
		}
	}

	for pos, b := range settings.Budgets {
		var year any
		if b.Year != 0 {
			year = b.Year
		}
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO budgets (category, amount_cents, year, months, position) VALUES (?, ?, ?, ?, ?)`,
			b.Category, b.Amount.Cents, year, encodeMonths(b.Months), pos); err != nil {
			return fmt.Errorf("insert budget for %q: %w", b.Category, err)
		}
	}

	if _, err := dbTx.ExecContext(ctx,
		`UPDATE profile SET currency = ? WHERE id = 1`, settings.Currency); err != nil {
		return fmt.Errorf("update currency: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit save settings: %w", err)
	}

	slog.InfoContext(ctx, "Settings saved",
		"categories", len(settings.Categories),
		"budgets", len(settings.Budgets))
	return nil
}

// AppendActivity records an audit entry.
func (r *SQLiteRepository) AppendActivity(ctx context.Context, e ActivityEntry) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (event_type, payload, occurred_at) VALUES (?, ?, ?)`,
		e.EventType, e.Payload, e.OccurredAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ListActivity returns the most recent audit entries, newest first.
func (r *SQLiteRepository) ListActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, payload, occurred_at FROM activity_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var (
			e    ActivityEntry
			when string
		)
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &when); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, when); err == nil {
			e.OccurredAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	return entries, nil
}

func (r *SQLiteRepository) listSubcategories(ctx context.Context, categoryID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM subcategories WHERE category_id = ? ORDER BY position, id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	defer rows.Close()

	var subs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		subs = append(subs, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}

	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		rawDate string
	)
	if err := row.Scan(&t.ID, &rawDate, &t.Description, &t.Amount.Cents,
		&t.PaymentSource, &t.Category, &t.Subcategory); err != nil {
		return core.Transaction{}, err
	}

	d, err := core.ParseDate(rawDate)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date %q: %w", rawDate, err)
	}
	t.Date = d

	return t, nil
}

// encodeMonths serializes a month set as a comma-joined list, empty for all months.
func encodeMonths(m core.MonthSet) string {
	months := m.Months()
	if months == nil {
		return ""
	}
	parts := make([]string, len(months))
	for i, month := range months {
		parts[i] = strconv.Itoa(month)
	}
	return strings.Join(parts, ",")
}

func decodeMonths(s string) core.MonthSet {
	if s == "" {
		return core.AllMonths
	}
	var months []int
	for _, part := range strings.Split(s, ",") {
		if m, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			months = append(months, m)
		}
	}
	return core.NewMonthSet(months...)
}
