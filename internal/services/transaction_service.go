package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// TransactionStore is the persistence surface the service needs.
// *storage.SQLiteRepository satisfies it.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, f core.Filter, limit, offset int) ([]core.Transaction, error)
	CountTransactions(ctx context.Context) (int64, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	GetSetting(ctx context.Context, key string) (string, error)
}

// EventPublisher emits change events for the backup worker.
// *amqp.Client satisfies it.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, id int64, op string) error
}

// TransactionService orchestrates transaction operations across storage and AMQP.
// Publishing a change event never fails the request; the periodic pending
// sweep in the worker covers lost events.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher
	logger    *applog.StructuredLogger
}

func NewTransactionService(store TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		logger: applog.NewStructuredLogger(applog.New(applog.Config{
			Component: applog.ComponentService,
		})),
	}
}

// Create validates and persists a new transaction, then publishes an
// upsert event for the backup worker.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.Normalized()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.LogTransactionCreated(ctx, created.ID, string(created.Type), created.Amount.Cents, created.Category)
	s.publishEvent(ctx, created.ID, amqp.OpUpsert)

	return created, nil
}

// Get returns a single transaction by id.
func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Update applies a partial update and publishes an upsert event.
func (s *TransactionService) Update(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.store.UpdateTransaction(ctx, id, p)
	if err != nil {
		return core.Transaction{}, err
	}

	s.publishEvent(ctx, id, amqp.OpUpsert)

	return updated, nil
}

// Delete removes a transaction and publishes a delete event.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	s.publishEvent(ctx, id, amqp.OpDelete)

	return nil
}

// Query returns transactions matching the filter, most recent first.
// A limit of zero means no pagination; offset without a limit is ignored.
func (s *TransactionService) Query(ctx context.Context, f core.Filter, limit, offset int) ([]core.Transaction, error) {
	f = f.Normalized()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if limit < 0 || offset < 0 {
		return nil, core.ErrInvalidPage
	}

	return s.store.ListTransactions(ctx, f, limit, offset)
}

// Statistics computes a summary over every transaction matching the
// filter, ignoring pagination.
func (s *TransactionService) Statistics(ctx context.Context, f core.Filter) (core.Summary, error) {
	f = f.Normalized()
	if err := f.Validate(); err != nil {
		return core.Summary{}, err
	}

	txs, err := s.store.ListTransactions(ctx, f, 0, 0)
	if err != nil {
		return core.Summary{}, err
	}

	return core.Summarize(txs), nil
}

// Categories returns the advisory category catalog.
func (s *TransactionService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

// Setting returns a settings value, or "" when the key is absent.
func (s *TransactionService) Setting(ctx context.Context, key string) (string, error) {
	return s.store.GetSetting(ctx, key)
}

// Count returns the total number of stored transactions.
func (s *TransactionService) Count(ctx context.Context) (int64, error) {
	return s.store.CountTransactions(ctx)
}

// ExportInfo describes an export payload.
type ExportInfo struct {
	ExportedAt        time.Time `json:"exported_at"`
	TotalTransactions int       `json:"total_transactions"`
	Version           string    `json:"version"`
}

// Export is a full data dump: every transaction, the category catalog,
// and a summary over the whole data set.
type Export struct {
	Info         ExportInfo
	Transactions []core.Transaction
	Categories   []core.Category
	Statistics   core.Summary
}

// Export collects all stored data for download.
func (s *TransactionService) Export(ctx context.Context) (Export, error) {
	txs, err := s.store.ListTransactions(ctx, core.Filter{}, 0, 0)
	if err != nil {
		return Export{}, fmt.Errorf("export transactions: %w", err)
	}

	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return Export{}, fmt.Errorf("export categories: %w", err)
	}

	version, err := s.store.GetSetting(ctx, "app_version")
	if err != nil {
		return Export{}, fmt.Errorf("export version: %w", err)
	}

	return Export{
		Info: ExportInfo{
			ExportedAt:        time.Now().UTC(),
			TotalTransactions: len(txs),
			Version:           version,
		},
		Transactions: txs,
		Categories:   cats,
		Statistics:   core.Summarize(txs),
	}, nil
}

// ImportResult reports how an import went: rows stored plus one error
// string per rejected record.
type ImportResult struct {
	Imported int
	Errors   []string
}

// Import stores a batch of transactions. Each record is validated
// independently; invalid records are reported and skipped, valid ones
// are stored. Incoming ids and timestamps are discarded.
func (s *TransactionService) Import(ctx context.Context, txs []core.Transaction) (ImportResult, error) {
	result := ImportResult{}

	for i, t := range txs {
		t.ID = 0
		t.Timestamp = time.Time{}

		if _, err := s.Create(ctx, t); err != nil {
			if core.IsValidation(err) {
				result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i+1, err))
				continue
			}
			return result, fmt.Errorf("import record %d: %w", i+1, err)
		}

		result.Imported++
	}

	slog.InfoContext(ctx, "Import completed",
		"imported", result.Imported,
		"rejected", len(result.Errors))

	return result, nil
}

func (s *TransactionService) publishEvent(ctx context.Context, id int64, op string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping change event",
			"id", id, "op", op)
		return
	}

	if err := s.publisher.PublishTransactionEvent(ctx, id, op); err != nil {
		s.logger.LogError(ctx, "Failed to publish change event", err,
			applog.ComponentAMQP, op,
			applog.LogFields{applog.FieldTransactionID: id})
	}
}
