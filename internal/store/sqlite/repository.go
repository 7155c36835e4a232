package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/store"

	_ "modernc.org/sqlite"
)

var (
	_ store.Store        = (*Repository)(nil)
	_ store.AtomicWriter = (*Repository)(nil)
	_ store.UserLister   = (*Repository)(nil)
)

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repository) GetBalance(ctx context.Context, userID string) (core.Balance, error) {
	var (
		b         core.Balance
		sources   string
		updatedNs int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT amount_cents, income_cents, income_sources, updated_at_ns FROM balances WHERE user_id = ?`,
		userID,
	).Scan(&b.Amount.Cents, &b.Income.Cents, &sources, &updatedNs)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Balance{}, core.ErrNotFound
	}
	if err != nil {
		return core.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	b.IncomeSources, err = store.DecodeSources([]byte(sources))
	if err != nil {
		return core.Balance{}, err
	}
	if updatedNs > 0 {
		b.UpdatedAt = time.Unix(0, updatedNs).UTC()
	}
	return b, nil
}

func (r *Repository) SetBalance(ctx context.Context, userID string, b core.Balance) error {
	return upsertBalance(ctx, r.db, userID, b)
}

func upsertBalance(ctx context.Context, q querier, userID string, b core.Balance) error {
	sources, err := store.EncodeSources(b.IncomeSources)
	if err != nil {
		return err
	}
	var updated int64
	if !b.UpdatedAt.IsZero() {
		updated = b.UpdatedAt.UnixNano()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO balances (user_id, amount_cents, income_cents, income_sources, updated_at_ns)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			income_cents = excluded.income_cents,
			income_sources = excluded.income_sources,
			updated_at_ns = excluded.updated_at_ns`,
		userID, b.Amount.Cents, b.Income.Cents, string(sources), updated,
	)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount_cents, title, category, message, date_ns, created_at_ns
		FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t                 core.Transaction
			dateNs, createdNs int64
		)
		if err := rows.Scan(&t.ID, &t.Amount.Cents, &t.Title, &t.Category, &t.Message, &dateNs, &createdNs); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date = time.Unix(0, dateNs).UTC()
		t.CreatedAt = time.Unix(0, createdNs).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) AddTransaction(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t, err := r.insert(ctx, r.db, userID, in)
	if err != nil {
		return core.Transaction{}, err
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", t.ID, "amount_cents", t.Amount.Cents)
	return t, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID string, id string) error {
	return deleteTx(ctx, r.db, userID, id)
}

func (r *Repository) CommitExpense(ctx context.Context, userID string, in core.TransactionInput, b core.Balance) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var t core.Transaction
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if t, err = r.insert(ctx, tx, userID, in); err != nil {
			return err
		}
		return upsertBalance(ctx, tx, userID, b)
	})
	return t, err
}

func (r *Repository) CommitDelete(ctx context.Context, userID string, id string, b core.Balance) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteTx(ctx, tx, userID, id); err != nil {
			return err
		}
		return upsertBalance(ctx, tx, userID, b)
	})
}

func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM balances
		UNION
		SELECT DISTINCT user_id FROM transactions
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) insert(ctx context.Context, q querier, userID string, in core.TransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		ID:        uuid.NewString(),
		Amount:    in.Amount,
		Title:     in.Title,
		Category:  in.Category,
		Message:   in.Message,
		Date:      in.Date.UTC(),
		CreatedAt: r.now().UTC(),
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, amount_cents, title, category, message, date_ns, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, userID, t.Amount.Cents, t.Title, t.Category, t.Message, t.Date.UnixNano(), t.CreatedAt.UnixNano(),
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func deleteTx(ctx context.Context, q querier, userID, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
