package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
	"spendwise/internal/store"
)

// UserDrift is one inconsistent ledger found by a reconciliation run.
type UserDrift struct {
	UserID string
	Drift  core.Money
}

type Report struct {
	Checked int
	Failed  int
	Drifted []UserDrift
}

// Reconciler checks every stored ledger for drift between the balance record
// and income minus expenses. It only reports; balances are never rewritten.
type Reconciler struct {
	store   store.Store
	users   store.UserLister
	timeout time.Duration
	logger  *log.Logger
}

func NewReconciler(st store.Store, users store.UserLister, timeout time.Duration, logger *log.Logger) *Reconciler {
	if timeout <= 0 {
		timeout = ledger.DefaultStoreTimeout
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Reconciler{store: st, users: users, timeout: timeout, logger: logger.WithComponent(log.ComponentReconcile)}
}

func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	var rep Report

	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	ids, err := r.users.ListUserIDs(lctx)
	cancel()
	if err != nil {
		return rep, fmt.Errorf("list users: %w", err)
	}

	for _, uid := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		fctx, cancel := context.WithTimeout(ctx, r.timeout)
		snap, err := ledger.Fetch(fctx, r.store, uid)
		cancel()
		if err != nil {
			rep.Failed++
			r.logger.ErrorContext(ctx, "Failed to load ledger for reconciliation",
				log.NewFields().WithOperation(log.OpReconcile).WithUser(uid).WithError(err).ToSlice()...)
			continue
		}
		rep.Checked++

		if d := ledger.Drift(snap); !d.IsZero() {
			rep.Drifted = append(rep.Drifted, UserDrift{UserID: uid, Drift: d})
			r.logger.WarnContext(ctx, "Ledger drift detected",
				log.FieldOperation, log.OpReconcile,
				log.FieldUserID, uid,
				log.FieldDriftCents, d.Cents,
				log.FieldBalanceCents, snap.Balance.Amount.Cents)
		}
	}

	r.logger.InfoContext(ctx, "Reconciliation completed",
		"checked", rep.Checked,
		"failed", rep.Failed,
		"drifted", len(rep.Drifted))
	return rep, nil
}

// Schedule runs RunOnce on the given cron spec until stop is called. Runs
// never overlap.
func (r *Reconciler) Schedule(ctx context.Context, spec string) (stop func(), err error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = c.AddFunc(spec, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Reconciliation run failed", log.FieldError, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reconciliation %q: %w", spec, err)
	}
	c.Start()
	r.logger.InfoContext(ctx, "Reconciliation scheduled", "schedule", spec)
	return func() { <-c.Stop().Done() }, nil
}
