package worker

import (
	"context"
	"fmt"

	"spendwise/internal/amqp"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
	"spendwise/internal/sheets"
)

// MirrorWorker applies expense events from the broker to a TransactionMirror.
type MirrorWorker struct {
	mirror sheets.TransactionMirror
	logger *log.Logger
}

func NewMirrorWorker(mirror sheets.TransactionMirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &MirrorWorker{mirror: mirror, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleMessage is an amqp.Handler. Balance and income events carry nothing
// to mirror and are acknowledged without work.
func (w *MirrorWorker) HandleMessage(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	switch ledger.EventType(msg.Type) {
	case ledger.EventExpenseAdded:
		tx, ok := msg.CoreTransaction()
		if !ok {
			w.logger.WarnContext(ctx, "Expense event without transaction, skipping",
				log.FieldEvent, msg.Type, log.FieldUserID, msg.UserID)
			return nil
		}
		ref, err := w.mirror.AppendTransaction(ctx, msg.UserID, tx)
		if err != nil {
			return fmt.Errorf("mirror transaction %s: %w", tx.ID, err)
		}
		w.logger.InfoContext(ctx, "Mirrored expense",
			log.NewFields().
				WithOperation(log.OpMirror).
				WithUser(msg.UserID).
				WithTransaction(tx.ID, tx.Title, tx.Category, tx.Amount.Cents).
				ToSlice()...)
		w.logger.DebugContext(ctx, "Mirror row reference", "row_ref", ref)

	case ledger.EventTransactionDeleted:
		tx, ok := msg.CoreTransaction()
		if !ok {
			w.logger.WarnContext(ctx, "Delete event without transaction, skipping",
				log.FieldEvent, msg.Type, log.FieldUserID, msg.UserID)
			return nil
		}
		if err := w.mirror.DeleteTransaction(ctx, tx.ID); err != nil {
			return fmt.Errorf("remove mirrored transaction %s: %w", tx.ID, err)
		}
		w.logger.InfoContext(ctx, "Removed mirrored expense",
			log.FieldOperation, log.OpMirror,
			log.FieldUserID, msg.UserID,
			log.FieldTransactionID, tx.ID)
	}
	return nil
}
