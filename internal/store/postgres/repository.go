package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"spendwise/internal/core"
	"spendwise/internal/store"
)

var (
	_ store.Store        = (*Repository)(nil)
	_ store.AtomicWriter = (*Repository)(nil)
	_ store.UserLister   = (*Repository)(nil)
)

type Repository struct {
	Pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository connects to databaseURL, applies migrations and returns a
// pooled repository.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{Pool: pool, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.Pool != nil {
		r.Pool.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.Pool.Ping(ctx)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) GetBalance(ctx context.Context, userID string) (core.Balance, error) {
	var (
		b       core.Balance
		sources []byte
	)
	err := r.Pool.QueryRow(ctx,
		`SELECT amount_cents, income_cents, income_sources, updated_at
		 FROM balances WHERE user_id = $1`,
		userID,
	).Scan(&b.Amount.Cents, &b.Income.Cents, &sources, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Balance{}, core.ErrNotFound
	}
	if err != nil {
		return core.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	if b.IncomeSources, err = store.DecodeSources(sources); err != nil {
		return core.Balance{}, err
	}
	return b, nil
}

func (r *Repository) SetBalance(ctx context.Context, userID string, b core.Balance) error {
	return upsertBalance(ctx, r.Pool, userID, b)
}

func upsertBalance(ctx context.Context, q querier, userID string, b core.Balance) error {
	sources, err := store.EncodeSources(b.IncomeSources)
	if err != nil {
		return err
	}
	updated := b.UpdatedAt
	if updated.IsZero() {
		updated = time.Unix(0, 0).UTC()
	}
	_, err = q.Exec(ctx,
		`INSERT INTO balances (user_id, amount_cents, income_cents, income_sources, updated_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
			amount_cents = EXCLUDED.amount_cents,
			income_cents = EXCLUDED.income_cents,
			income_sources = EXCLUDED.income_sources,
			updated_at = EXCLUDED.updated_at`,
		userID, b.Amount.Cents, b.Income.Cents, string(sources), updated,
	)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id::text, amount_cents, title, category, message, date, created_at
		 FROM transactions
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(&t.ID, &t.Amount.Cents, &t.Title, &t.Category, &t.Message, &t.Date, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) AddTransaction(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return r.insert(ctx, r.Pool, userID, in)
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID string, id string) error {
	return deleteTx(ctx, r.Pool, userID, id)
}

func (r *Repository) CommitExpense(ctx context.Context, userID string, in core.TransactionInput, b core.Balance) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var t core.Transaction
	err := pgx.BeginFunc(ctx, r.Pool, func(tx pgx.Tx) error {
		var err error
		if t, err = r.insert(ctx, tx, userID, in); err != nil {
			return err
		}
		return upsertBalance(ctx, tx, userID, b)
	})
	return t, err
}

func (r *Repository) CommitDelete(ctx context.Context, userID string, id string, b core.Balance) error {
	return pgx.BeginFunc(ctx, r.Pool, func(tx pgx.Tx) error {
		if err := deleteTx(ctx, tx, userID, id); err != nil {
			return err
		}
		return upsertBalance(ctx, tx, userID, b)
	})
}

func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT user_id FROM balances
		 UNION
		 SELECT user_id FROM transactions
		 ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect user ids: %w", err)
	}
	return ids, nil
}

func (r *Repository) insert(ctx context.Context, q querier, userID string, in core.TransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		ID:        uuid.NewString(),
		Amount:    in.Amount,
		Title:     in.Title,
		Category:  in.Category,
		Message:   in.Message,
		Date:      in.Date,
		CreatedAt: r.now(),
	}
	_, err := q.Exec(ctx,
		`INSERT INTO transactions (id, user_id, amount_cents, title, category, message, date, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, userID, t.Amount.Cents, t.Title, t.Category, t.Message, t.Date, t.CreatedAt,
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func deleteTx(ctx context.Context, q querier, userID, id string) error {
	// Non-UUID ids can never match a row.
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrNotFound
	}
	tag, err := q.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND id = $2::uuid`, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
