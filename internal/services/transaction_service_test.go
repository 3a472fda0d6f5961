package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

// fakeStore is an in-memory TransactionStore for service tests.
type fakeStore struct {
	nextID     int64
	items      map[int64]core.Transaction
	categories []core.Category
	settings   map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID: 1,
		items:  make(map[int64]core.Transaction),
		categories: []core.Category{
			{Name: "Salary", Type: core.Income, Color: "#28a745", Icon: "💰"},
			{Name: "Food & Dining", Type: core.Expense, Color: "#dc3545", Icon: "🍽️"},
		},
		settings: map[string]string{"app_version": "1.0.0"},
	}
}

func (f *fakeStore) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = f.nextID
	t.Timestamp = time.Date(2024, 1, 1, 0, 0, 0, int(f.nextID), time.UTC)
	f.nextID++
	f.items[t.ID] = t
	return t, nil
}

func (f *fakeStore) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, ok := f.items[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error) {
	t, ok := f.items[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	t = p.Apply(t)
	f.items[id] = t
	return t, nil
}

func (f *fakeStore) DeleteTransaction(ctx context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeStore) ListTransactions(ctx context.Context, filter core.Filter, limit, offset int) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range f.items {
		if filter.Type != "" && string(t.Type) != filter.Type {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset > 0 && limit > 0 {
		if offset >= len(out) {
			return []core.Transaction{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

func (f *fakeStore) CountTransactions(ctx context.Context) (int64, error) {
	return int64(len(f.items)), nil
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeStore) GetSetting(ctx context.Context, key string) (string, error) {
	return f.settings[key], nil
}

// fakePublisher records published events and can be told to fail.
type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishTransactionEvent(ctx context.Context, id int64, op string) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, op)
	return nil
}

func validTransaction() core.Transaction {
	return core.Transaction{
		Type:        core.Expense,
		Amount:      core.Money{Cents: 4500},
		Category:    "Food & Dining",
		Description: "dinner",
		Date:        core.NewDate(2024, 5, 12),
	}
}

func TestCreatePublishesUpsert(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)

	created, err := svc.Create(context.Background(), validTransaction())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if len(pub.events) != 1 || pub.events[0] != amqp.OpUpsert {
		t.Fatalf("expected one upsert event, got %v", pub.events)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)

	bad := validTransaction()
	bad.Amount = core.Money{Cents: 0}

	_, err := svc.Create(context.Background(), bad)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("no event should be published for rejected create")
	}
	if len(store.items) != 0 {
		t.Fatalf("nothing should be stored for rejected create")
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(store, pub)

	created, err := svc.Create(context.Background(), validTransaction())
	if err != nil {
		t.Fatalf("create should succeed despite publish failure: %v", err)
	}
	if _, ok := store.items[created.ID]; !ok {
		t.Fatalf("transaction should be stored")
	}
}

func TestCreateWithoutPublisher(t *testing.T) {
	svc := NewTransactionService(newFakeStore(), nil)

	if _, err := svc.Create(context.Background(), validTransaction()); err != nil {
		t.Fatalf("create without publisher: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, validTransaction())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	amount := core.Money{Cents: 9900}
	updated, err := svc.Update(ctx, created.ID, core.TransactionPatch{Amount: &amount})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != 9900 {
		t.Fatalf("amount not updated: %d", updated.Amount.Cents)
	}
	if updated.Category != created.Category {
		t.Fatalf("unpatched field changed")
	}
	if len(pub.events) != 2 || pub.events[1] != amqp.OpUpsert {
		t.Fatalf("expected upsert event for update, got %v", pub.events)
	}
}

func TestUpdateEmptyPatch(t *testing.T) {
	svc := NewTransactionService(newFakeStore(), &fakePublisher{})

	_, err := svc.Update(context.Background(), 1, core.TransactionPatch{})
	if !errors.Is(err, core.ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc := NewTransactionService(newFakeStore(), &fakePublisher{})

	typ := core.Income
	_, err := svc.Update(context.Background(), 404, core.TransactionPatch{Type: &typ})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeletePublishes(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, validTransaction())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if pub.events[len(pub.events)-1] != amqp.OpDelete {
		t.Fatalf("expected delete event, got %v", pub.events)
	}

	if err := svc.Delete(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestQueryValidatesFilter(t *testing.T) {
	svc := NewTransactionService(newFakeStore(), nil)

	_, err := svc.Query(context.Background(), core.Filter{Type: "transfer"}, 0, 0)
	if !errors.Is(err, core.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}

	_, err = svc.Query(context.Background(), core.Filter{}, -1, 0)
	if !errors.Is(err, core.ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
}

func TestStatisticsIgnoresPagination(t *testing.T) {
	store := newFakeStore()
	svc := NewTransactionService(store, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, validTransaction()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	summary, err := svc.Statistics(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if summary.TransactionCount != 3 {
		t.Fatalf("expected 3 transactions in summary, got %d", summary.TransactionCount)
	}
	if summary.TotalExpenses.Cents != 13500 {
		t.Fatalf("expected 13500 total expenses, got %d", summary.TotalExpenses.Cents)
	}
}

func TestExport(t *testing.T) {
	store := newFakeStore()
	svc := NewTransactionService(store, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validTransaction()); err != nil {
		t.Fatalf("create: %v", err)
	}

	export, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if export.Info.TotalTransactions != 1 {
		t.Fatalf("expected 1 transaction in export info, got %d", export.Info.TotalTransactions)
	}
	if export.Info.Version != "1.0.0" {
		t.Fatalf("expected version from settings, got %q", export.Info.Version)
	}
	if len(export.Transactions) != 1 || len(export.Categories) != 2 {
		t.Fatalf("unexpected export contents: %d transactions, %d categories",
			len(export.Transactions), len(export.Categories))
	}
	if export.Statistics.TransactionCount != 1 {
		t.Fatalf("expected statistics over exported data")
	}
}

func TestImport(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)

	good := validTransaction()
	good.ID = 999 // incoming ids are discarded

	bad := validTransaction()
	bad.Category = "   "

	result, err := svc.Import(context.Background(), []core.Transaction{good, bad, validTransaction()})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("expected 2 imported, got %d", result.Imported)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "record 2") {
		t.Fatalf("expected one error for record 2, got %v", result.Errors)
	}
	if _, ok := store.items[999]; ok {
		t.Fatalf("incoming id should not be honored")
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected events only for stored records, got %v", pub.events)
	}
}

func TestImportSkipsOverlongDescription(t *testing.T) {
	store := newFakeStore()
	svc := NewTransactionService(store, &fakePublisher{})

	bad := validTransaction()
	bad.Description = strings.Repeat("x", 201)

	result, err := svc.Import(context.Background(), []core.Transaction{validTransaction(), bad})
	if err != nil {
		t.Fatalf("overlong description must not abort the batch: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("expected 1 imported, got %d", result.Imported)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "record 2") {
		t.Fatalf("expected one error for record 2, got %v", result.Errors)
	}
}
