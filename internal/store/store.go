// Package store persists the ledger in SQLite: transactions keyed by content
// hash, categories and rules, and balance records.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/insightdelivered/pfinance/internal/models"
)

// ErrNotFound is returned when an update targets a row that does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS category_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id INTEGER NOT NULL,
	pattern TEXT NOT NULL,
	match_type TEXT NOT NULL DEFAULT 'contains',
	priority INTEGER NOT NULL DEFAULT 100,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	FOREIGN KEY(category_id) REFERENCES categories(id)
);

CREATE TABLE IF NOT EXISTS transactions (
	row_id INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	date TEXT NOT NULL,
	value_date TEXT,
	amount TEXT NOT NULL,
	description TEXT NOT NULL,
	type TEXT NOT NULL,
	category TEXT NOT NULL,
	is_manual_override BOOLEAN NOT NULL DEFAULT FALSE,
	manual_category_id INTEGER,
	hash TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL,
	run_id TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(manual_category_id) REFERENCES categories(id)
);
CREATE INDEX IF NOT EXISTS idx_transactions_id ON transactions(id);

CREATE TABLE IF NOT EXISTS balance_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	value TEXT NOT NULL,
	available TEXT,
	pattern TEXT NOT NULL,
	statement_date TEXT NOT NULL DEFAULT '',
	run_id TEXT,
	selected BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(value, statement_date)
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	keyManualBalance     = "manual_balance"
	keyManualBalanceDate = "manual_balance_date"
	keyRulesVersion      = "rules_version"
)

// Store is a SQLite-backed ledger.
type Store struct {
	db   *sql.DB
	path string
}

// InsertResult counts the outcome of a batch insert.
type InsertResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", path, err)
	}
	// One connection keeps per-connection pragmas in force and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path is the database file the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadExistingHashes returns every persisted content hash.
func (s *Store) LoadExistingHashes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT hash FROM transactions")
	if err != nil {
		return nil, fmt.Errorf("querying hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// InsertBatch inserts txs and, when a is non-nil, a balance record, in one
// database transaction. Rows whose hash already exists are skipped and
// counted as duplicates. On any error nothing is written.
func (s *Store) InsertBatch(ctx context.Context, txs []models.Transaction, a *models.BalanceAssertion, runID string) (InsertResult, error) {
	var res InsertResult

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `INSERT OR IGNORE INTO transactions
		(id, date, value_date, amount, description, type, category, is_manual_override, manual_category_id, hash, source, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if t.Hash == "" {
			return res, fmt.Errorf("transaction %s has no hash", t.ID)
		}
		r, err := stmt.ExecContext(ctx,
			t.ID, t.DateISO(), nullDate(t.ValueDate), t.Amount.StringFixed(2), t.Description,
			string(t.Type), t.Category, t.IsManualOverride, nullInt(t.ManualCategoryID), t.Hash,
			string(t.Source), runID)
		if err != nil {
			return res, fmt.Errorf("inserting transaction %s: %w", t.ID, err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return res, fmt.Errorf("inserting transaction %s: %w", t.ID, err)
		}
		if n == 0 {
			res.Duplicates++
			continue
		}
		res.Inserted++
	}

	if a != nil {
		if err := insertBalanceRecord(ctx, dbTx, a, runID); err != nil {
			return res, err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("committing transactions: %w", err)
	}
	return res, nil
}

// insertBalanceRecord stores a and reselects the record with the latest
// statement date (latest insert on ties).
func insertBalanceRecord(ctx context.Context, dbTx *sql.Tx, a *models.BalanceAssertion, runID string) error {
	var available any
	if a.Available != nil {
		available = a.Available.StringFixed(2)
	}
	stmtDate := ""
	if a.StatementDate != nil {
		stmtDate = a.StatementDate.Format(models.DateLayout)
	}
	if _, err := dbTx.ExecContext(ctx,
		`INSERT OR IGNORE INTO balance_records (value, available, pattern, statement_date, run_id) VALUES (?, ?, ?, ?, ?)`,
		a.Value.StringFixed(2), available, a.ExtractionPattern, stmtDate, runID); err != nil {
		return fmt.Errorf("inserting balance record: %w", err)
	}
	if _, err := dbTx.ExecContext(ctx, `UPDATE balance_records SET selected = (id = (
		SELECT id FROM balance_records ORDER BY statement_date = '', statement_date DESC, id DESC LIMIT 1))`); err != nil {
		return fmt.Errorf("selecting balance record: %w", err)
	}
	return nil
}

// ListTransactions returns every transaction ordered by date.
func (s *Store) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, date, value_date, amount, description, type, category,
		is_manual_override, manual_category_id, hash, source
		FROM transactions ORDER BY date, row_id`)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			t         models.Transaction
			date      string
			valueDate sql.NullString
			amount    string
			txType    string
			source    string
			manualID  sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &date, &valueDate, &amount, &t.Description, &txType, &t.Category,
			&t.IsManualOverride, &manualID, &t.Hash, &source); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if t.Date, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, fmt.Errorf("transaction %s: bad date %q: %w", t.ID, date, err)
		}
		if valueDate.Valid && valueDate.String != "" {
			vd, err := time.Parse(models.DateLayout, valueDate.String)
			if err != nil {
				return nil, fmt.Errorf("transaction %s: bad value date %q: %w", t.ID, valueDate.String, err)
			}
			t.ValueDate = &vd
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s: bad amount %q: %w", t.ID, amount, err)
		}
		if manualID.Valid {
			id := manualID.Int64
			t.ManualCategoryID = &id
		}
		t.Type = models.TxType(txType)
		t.Source = models.SourceKind(source)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// UpdateCategories sets the category of each transaction in byHash in one
// database transaction.
func (s *Store) UpdateCategories(ctx context.Context, byHash map[string]string) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, "UPDATE transactions SET category = ? WHERE hash = ?")
	if err != nil {
		return fmt.Errorf("preparing update statement: %w", err)
	}
	defer stmt.Close()

	for hash, category := range byHash {
		if _, err := stmt.ExecContext(ctx, category, hash); err != nil {
			return fmt.Errorf("updating category of %s: %w", hash, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing category updates: %w", err)
	}
	return nil
}

// SetManualCategory pins the transaction with the given hash to a category.
func (s *Store) SetManualCategory(ctx context.Context, hash string, categoryID int64) error {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM categories WHERE id = ?", categoryID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("category %d: %w", categoryID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("looking up category %d: %w", categoryID, err)
	}

	r, err := s.db.ExecContext(ctx, `UPDATE transactions
		SET is_manual_override = TRUE, manual_category_id = ?, category = ? WHERE hash = ?`,
		categoryID, name, hash)
	if err != nil {
		return fmt.Errorf("setting manual category: %w", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", hash, ErrNotFound)
	}
	return nil
}

// SetManualBalance stores a user-entered base balance. A nil date means the
// base precedes every transaction.
func (s *Store) SetManualBalance(ctx context.Context, value decimal.Decimal, date *time.Time) error {
	dateText := ""
	if date != nil {
		dateText = date.Format(models.DateLayout)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value")
	if err != nil {
		return fmt.Errorf("preparing settings statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, keyManualBalance, value.StringFixed(2)); err != nil {
		return fmt.Errorf("saving %s: %w", keyManualBalance, err)
	}
	if _, err := stmt.ExecContext(ctx, keyManualBalanceDate, dateText); err != nil {
		return fmt.Errorf("saving %s: %w", keyManualBalanceDate, err)
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing manual balance: %w", err)
	}
	return nil
}

// ClearManualBalance removes the manual base balance.
func (s *Store) ClearManualBalance(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key IN (?, ?)",
		keyManualBalance, keyManualBalanceDate); err != nil {
		return fmt.Errorf("clearing manual balance: %w", err)
	}
	return nil
}

// SelectedBalance returns the selected file-derived balance record, or nil.
func (s *Store) SelectedBalance(ctx context.Context) (*models.BalanceAssertion, error) {
	var (
		value, pattern, stmtDate string
		available                sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT value, available, pattern, statement_date FROM balance_records WHERE selected LIMIT 1").
		Scan(&value, &available, &pattern, &stmtDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying selected balance: %w", err)
	}

	a := &models.BalanceAssertion{ExtractionPattern: pattern}
	if a.Value, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("bad balance value %q: %w", value, err)
	}
	if available.Valid {
		if v, err := decimal.NewFromString(available.String); err == nil {
			a.Available = &v
		}
	}
	if stmtDate != "" {
		if d, err := time.Parse(models.DateLayout, stmtDate); err == nil {
			a.StatementDate = &d
		}
	}
	return a, nil
}

// GetRunningBalanceInputs returns the base balance (manual override first,
// then the selected balance record, else zero) and every transaction.
func (s *Store) GetRunningBalanceInputs(ctx context.Context) (models.BalanceInputs, error) {
	var in models.BalanceInputs

	settings, err := s.settings(ctx, keyManualBalance, keyManualBalanceDate)
	if err != nil {
		return in, err
	}
	if v, ok := settings[keyManualBalance]; ok {
		if in.BaseBalance, err = decimal.NewFromString(v); err != nil {
			return in, fmt.Errorf("bad manual balance %q: %w", v, err)
		}
		in.Manual = true
		if d, err := time.Parse(models.DateLayout, settings[keyManualBalanceDate]); err == nil {
			in.BaseDate = &d
		}
	} else {
		rec, err := s.SelectedBalance(ctx)
		if err != nil {
			return in, err
		}
		if rec != nil {
			in.BaseBalance = rec.Value
			in.BaseDate = rec.StatementDate
		}
	}

	if in.Transactions, err = s.ListTransactions(ctx); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Store) settings(ctx context.Context, keys ...string) (map[string]string, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings WHERE key IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(models.DateLayout)
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
