package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/backup"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// BackupWorker mirrors transactions from SQLite to a backup target.
// It is driven by AMQP change events, with a periodic sweep of rows
// still marked pending as a recovery path for lost messages.
type BackupWorker struct {
	storage   *storage.SQLiteRepository
	target    backup.Target
	batchSize int
}

func NewBackupWorker(storage *storage.SQLiteRepository, target backup.Target, batchSize int) *BackupWorker {
	return &BackupWorker{
		storage:   storage,
		target:    target,
		batchSize: batchSize,
	}
}

// HandleEvent processes a single transaction change event from AMQP.
func (w *BackupWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"id", event.ID,
		"op", event.Op)

	switch event.Op {
	case amqp.OpUpsert:
		return w.mirrorTransaction(ctx, event.ID)
	case amqp.OpDelete:
		return w.removeTransaction(ctx, event.ID)
	default:
		return fmt.Errorf("unknown event op %q", event.Op)
	}
}

// ProcessPending mirrors any transactions that have not been backed up yet.
// This is a recovery mechanism in case AMQP messages are lost.
func (w *BackupWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.ListPendingBackup(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending backup: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending backups", "count", len(pending))

	for _, t := range pending {
		if err := w.mirrorTransaction(ctx, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to back up transaction", "id", t.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck mirrors outstanding transactions at worker startup, using a
// larger batch than the periodic sweep to recover from worker downtime.
func (w *BackupWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.ListPendingBackup(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending backup for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending backups found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending backups on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, t := range pending {
		if err := w.mirrorTransaction(ctx, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to back up transaction during startup",
				"id", t.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup backup check completed",
		"total", len(pending),
		"backed_up", successCount,
		"errors", errorCount)

	return nil
}

func (w *BackupWorker) mirrorTransaction(ctx context.Context, id int64) error {
	t, err := w.storage.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Deleted between the event and now. Nothing left to mirror.
			slog.WarnContext(ctx, "Transaction gone before backup, skipping", "id", id)
			return nil
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	ref, err := w.target.AppendTransaction(ctx, t)
	if err != nil {
		if markErr := w.storage.MarkBackupError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark backup error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to backup target: %w", err)
	}

	if err := w.storage.MarkBackupDone(ctx, id); err != nil {
		// The mirror itself succeeded, so do not fail the event.
		slog.ErrorContext(ctx, "Failed to mark backup done", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully backed up transaction",
		"id", id,
		"backup_ref", ref,
		"amount_cents", t.Amount.Cents)

	return nil
}

func (w *BackupWorker) removeTransaction(ctx context.Context, id int64) error {
	if err := w.target.RemoveTransaction(ctx, id); err != nil {
		return fmt.Errorf("remove from backup target: %w", err)
	}

	slog.InfoContext(ctx, "Removed transaction from backup target", "id", id)
	return nil
}
