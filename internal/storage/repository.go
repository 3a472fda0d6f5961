package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// timestampLayout is a fixed-width UTC layout so stored timestamps sort
// lexicographically in chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// BackupStatus values for the transactions.backup_status column.
const (
	BackupPending = "pending"
	BackupDone    = "done"
	BackupError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB

	// now is swappable in tests; defaults to time.Now
	now func() time.Time
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

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTransaction persists a validated transaction and returns it with
// the storage-assigned id and server-set timestamp.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalized()
	t.Timestamp = r.now().UTC()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (type, amount_cents, category, description, date, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(t.Type), t.Amount.Cents, t.Category, t.Description,
		t.Date.String(), t.Timestamp.Format(timestampLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"category", t.Category,
		"date", t.Date.String())

	return t, nil
}

// GetTransaction retrieves a single transaction by id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+listColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// UpdateTransaction applies a partial update. The timestamp is refreshed
// on every mutation and the row is re-queued for backup.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error) {
	ts := r.now().UTC().Format(timestampLayout)
	query, args := buildUpdateQuery(p, ts, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.Transaction{}, core.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id)
	return r.GetTransaction(ctx, id)
}

// DeleteTransaction removes a transaction permanently.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// ListTransactions returns the transactions satisfying the filter,
// ordered by (date desc, timestamp desc). The filter must be normalized
// and validated by the caller.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.Filter, limit, offset int) ([]core.Transaction, error) {
	query, args := buildListQuery(f, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// CountTransactions returns the total number of stored transactions.
func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// ListCategories returns the advisory category catalog, ordered by type
// then name.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name, type, color, icon FROM categories ORDER BY type, name")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.Name, &typ, &c.Color, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(typ)
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

// GetSetting returns a settings value by key, "" when absent.
func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

// ListPendingBackup returns transactions not yet mirrored to the backup
// target, oldest first.
func (r *SQLiteRepository) ListPendingBackup(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+listColumns+" FROM transactions WHERE backup_status = ? ORDER BY id LIMIT ?",
		BackupPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending backup: %w", err)
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
	return txs, rows.Err()
}

// MarkBackupDone marks a transaction as successfully mirrored.
func (r *SQLiteRepository) MarkBackupDone(ctx context.Context, id int64) error {
	return r.setBackupStatus(ctx, id, BackupDone)
}

// MarkBackupError marks a transaction whose mirroring failed.
func (r *SQLiteRepository) MarkBackupError(ctx context.Context, id int64) error {
	return r.setBackupStatus(ctx, id, BackupError)
}

func (r *SQLiteRepository) setBackupStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET backup_status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("set backup status %s for %d: %w", status, id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		typ     string
		date    string
		tsValue string
	)
	if err := row.Scan(&t.ID, &typ, &t.Amount.Cents, &t.Category, &t.Description, &date, &tsValue); err != nil {
		return core.Transaction{}, err
	}

	t.Type = core.TransactionType(typ)

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	t.Date = d

	ts, err := time.Parse(timestampLayout, tsValue)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored timestamp %q: %w", tsValue, err)
	}
	t.Timestamp = ts

	return t, nil
}
