package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	// Deterministic, strictly increasing clock so timestamp ordering is
	// stable within a single calendar date.
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var tick int64
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func mustCreate(t *testing.T, repo *SQLiteRepository, typ core.TransactionType, cents int64, category, desc, date string) core.Transaction {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date %q: %v", date, err)
	}
	tx, err := repo.CreateTransaction(context.Background(), core.Transaction{
		Type:        typ,
		Amount:      core.Money{Cents: cents},
		Category:    category,
		Description: desc,
		Date:        d,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, core.Income, 123456, " Salary ", " June pay ", "2024-06-01")
	if created.ID == 0 {
		t.Fatalf("expected storage-assigned id")
	}
	if created.Category != "Salary" || created.Description != "June pay" {
		t.Fatalf("fields should be trimmed on create: %+v", created)
	}

	got, err := repo.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Type != core.Income || got.Amount.Cents != 123456 ||
		got.Category != "Salary" || got.Description != "June pay" ||
		got.Date.String() != "2024-06-01" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(created.Timestamp) {
		t.Fatalf("timestamp mismatch: %v vs %v", got.Timestamp, created.Timestamp)
	}
}

func TestGetNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetTransaction(context.Background(), 404); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, core.Expense, 4000, "Food", "lunch", "2024-06-02")

	amount := core.Money{Cents: 4500}
	updated, err := repo.UpdateTransaction(ctx, created.ID, core.TransactionPatch{Amount: &amount})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != 4500 {
		t.Fatalf("amount expected 4500, got %d", updated.Amount.Cents)
	}
	// Untouched fields survive, timestamp moves forward.
	if updated.Category != "Food" || updated.Description != "lunch" || updated.Date.String() != "2024-06-02" {
		t.Fatalf("unpatched fields changed: %+v", updated)
	}
	if !updated.Timestamp.After(created.Timestamp) {
		t.Fatalf("timestamp must refresh on update: %v vs %v", updated.Timestamp, created.Timestamp)
	}

	if _, err := repo.UpdateTransaction(ctx, 999, core.TransactionPatch{Amount: &amount}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, core.Expense, 100, "Food", "snack", "2024-06-03")
	if err := repo.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("double delete expected ErrNotFound, got %v", err)
	}
}

func seedListFixture(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	mustCreate(t, repo, core.Income, 10000, "Salary", "January pay", "2024-01-05")
	mustCreate(t, repo, core.Expense, 4000, "Food", "groceries", "2024-01-10")
	mustCreate(t, repo, core.Expense, 1000, "Food", "Lunch out", "2024-02-01")
	mustCreate(t, repo, core.Expense, 2500, "Transport", "fuel", "2024-02-15")
	mustCreate(t, repo, core.Income, 500, "Gift", "birthday", "2024-03-01")
}

func TestListOrderingAndNoCriteria(t *testing.T) {
	repo := newTestRepo(t)
	seedListFixture(t, repo)

	txs, err := repo.ListTransactions(context.Background(), core.Filter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 5 {
		t.Fatalf("expected 5 transactions, got %d", len(txs))
	}
	wantDates := []string{"2024-03-01", "2024-02-15", "2024-02-01", "2024-01-10", "2024-01-05"}
	for i, want := range wantDates {
		if got := txs[i].Date.String(); got != want {
			t.Fatalf("position %d expected %s, got %s", i, want, got)
		}
	}
}

func TestListSameDateTimestampOrdering(t *testing.T) {
	repo := newTestRepo(t)
	first := mustCreate(t, repo, core.Expense, 100, "Food", "first", "2024-05-01")
	second := mustCreate(t, repo, core.Expense, 200, "Food", "second", "2024-05-01")

	txs, err := repo.ListTransactions(context.Background(), core.Filter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Same date: most recently recorded first.
	if txs[0].ID != second.ID || txs[1].ID != first.ID {
		t.Fatalf("expected [%d %d], got [%d %d]", second.ID, first.ID, txs[0].ID, txs[1].ID)
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepo(t)
	seedListFixture(t, repo)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter core.Filter
		want   int
		check  func(core.Transaction) bool
	}{
		{"type income", core.Filter{Type: "income"}, 2,
			func(tx core.Transaction) bool { return tx.Type == core.Income }},
		{"category", core.Filter{Category: "Food"}, 2,
			func(tx core.Transaction) bool { return tx.Category == "Food" }},
		{"month", core.Filter{Month: "2024-02"}, 2,
			func(tx core.Transaction) bool { return tx.Date.MonthKey() == "2024-02" }},
		{"date range inclusive", core.Filter{StartDate: "2024-01-10", EndDate: "2024-02-15"}, 3,
			func(tx core.Transaction) bool {
				d := tx.Date.String()
				return d >= "2024-01-10" && d <= "2024-02-15"
			}},
		{"amount bounds", core.Filter{MinAmount: &core.Money{Cents: 1000}, MaxAmount: &core.Money{Cents: 4000}}, 3,
			func(tx core.Transaction) bool { return tx.Amount.Cents >= 1000 && tx.Amount.Cents <= 4000 }},
		{"min equals max", core.Filter{MinAmount: &core.Money{Cents: 2500}, MaxAmount: &core.Money{Cents: 2500}}, 1,
			func(tx core.Transaction) bool { return tx.Amount.Cents == 2500 }},
		{"search description case-insensitive", core.Filter{Search: "lunch"}, 1,
			func(tx core.Transaction) bool { return tx.Description == "Lunch out" }},
		{"search matches category", core.Filter{Search: "Transp"}, 1,
			func(tx core.Transaction) bool { return tx.Category == "Transport" }},
		{"conjunction", core.Filter{Type: "expense", Category: "Food", Month: "2024-01"}, 1,
			func(tx core.Transaction) bool {
				return tx.Type == core.Expense && tx.Category == "Food" && tx.Date.MonthKey() == "2024-01"
			}},
		{"no matches", core.Filter{Category: "Rent"}, 0, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			txs, err := repo.ListTransactions(ctx, tc.filter, 0, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(txs) != tc.want {
				t.Fatalf("expected %d results, got %d", tc.want, len(txs))
			}
			for _, tx := range txs {
				if tc.check != nil && !tc.check(tx) {
					t.Fatalf("result violates filter: %+v", tx)
				}
			}
		})
	}
}

func TestListTypeAllEqualsAbsent(t *testing.T) {
	repo := newTestRepo(t)
	seedListFixture(t, repo)
	ctx := context.Background()

	all, err := repo.ListTransactions(ctx, core.Filter{Type: "all"}.Normalized(), 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	absent, err := repo.ListTransactions(ctx, core.Filter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != len(absent) {
		t.Fatalf("type=all must equal absent type: %d vs %d", len(all), len(absent))
	}
	for i := range all {
		if all[i].ID != absent[i].ID {
			t.Fatalf("result sets diverge at %d", i)
		}
	}
}

func TestListPagination(t *testing.T) {
	repo := newTestRepo(t)
	seedListFixture(t, repo)
	ctx := context.Background()

	full, err := repo.ListTransactions(ctx, core.Filter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	page, err := repo.ListTransactions(ctx, core.Filter{}, 2, 1)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 results, got %d", len(page))
	}
	// limit=2, offset=1 returns ordered positions 2 and 3
	if page[0].ID != full[1].ID || page[1].ID != full[2].ID {
		t.Fatalf("unexpected page: %v vs full %v", page, full)
	}
}

func TestCountAndCategoriesAndSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.CountTransactions(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected 0 transactions, got %d (err=%v)", n, err)
	}
	mustCreate(t, repo, core.Expense, 100, "Food", "snack", "2024-06-01")
	if n, _ = repo.CountTransactions(ctx); n != 1 {
		t.Fatalf("expected 1 transaction, got %d", n)
	}

	cats, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 16 {
		t.Fatalf("expected 16 seeded categories, got %d", len(cats))
	}
	// Ordered by type then name: expenses first alphabetically
	if cats[0].Type != core.Expense {
		t.Fatalf("expected expense categories first, got %+v", cats[0])
	}

	currency, err := repo.GetSetting(ctx, "currency")
	if err != nil || currency != "USD" {
		t.Fatalf("expected seeded currency USD, got %q (err=%v)", currency, err)
	}
	missing, err := repo.GetSetting(ctx, "nope")
	if err != nil || missing != "" {
		t.Fatalf("missing setting should be empty, got %q (err=%v)", missing, err)
	}
}

func TestBackupQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, core.Expense, 100, "Food", "snack", "2024-06-01")

	pending, err := repo.ListPendingBackup(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Fatalf("expected freshly created row pending, got %v", pending)
	}

	if err := repo.MarkBackupDone(ctx, created.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if pending, _ = repo.ListPendingBackup(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected empty pending queue, got %v", pending)
	}

	// Any mutation re-queues the row.
	amount := core.Money{Cents: 200}
	if _, err := repo.UpdateTransaction(ctx, created.ID, core.TransactionPatch{Amount: &amount}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if pending, _ = repo.ListPendingBackup(ctx, 10); len(pending) != 1 {
		t.Fatalf("update must re-queue for backup, got %v", pending)
	}
}
