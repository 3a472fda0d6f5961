package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// respondError maps domain errors onto HTTP statuses: validation
// failures are the client's fault, unknown ids are 404, anything else
// is a storage problem and stays opaque.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: core.ErrNotFound.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "url", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "internal error"})
	}
}

func respondBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: msg})
}

// transactionJSON is the wire shape of a transaction. Amounts travel
// as decimal numbers, dates as YYYY-MM-DD strings.
type transactionJSON struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Timestamp   string  `json:"timestamp"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      t.Amount.Float64(),
		Category:    t.Category,
		Description: t.Description,
		Date:        t.Date.String(),
		Timestamp:   t.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func toTransactionListJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

type monthFlowJSON struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

type summaryJSON struct {
	TotalIncome       float64                  `json:"total_income"`
	TotalExpenses     float64                  `json:"total_expenses"`
	Balance           float64                  `json:"balance"`
	TransactionCount  int                      `json:"transaction_count"`
	AverageAmount     float64                  `json:"average_amount"`
	IncomeByCategory  map[string]float64       `json:"income_by_category"`
	ExpenseByCategory map[string]float64       `json:"expense_by_category"`
	Monthly           map[string]monthFlowJSON `json:"monthly"`
}

func toSummaryJSON(s core.Summary) summaryJSON {
	out := summaryJSON{
		TotalIncome:       s.TotalIncome.Float64(),
		TotalExpenses:     s.TotalExpenses.Float64(),
		Balance:           s.Balance.Float64(),
		TransactionCount:  s.TransactionCount,
		AverageAmount:     s.AverageAmount.Float64(),
		IncomeByCategory:  make(map[string]float64, len(s.IncomeByCategory)),
		ExpenseByCategory: make(map[string]float64, len(s.ExpenseByCategory)),
		Monthly:           make(map[string]monthFlowJSON, len(s.Monthly)),
	}
	for cat, m := range s.IncomeByCategory {
		out.IncomeByCategory[cat] = m.Float64()
	}
	for cat, m := range s.ExpenseByCategory {
		out.ExpenseByCategory[cat] = m.Float64()
	}
	for month, flow := range s.Monthly {
		out.Monthly[month] = monthFlowJSON{
			Income:  flow.Income.Float64(),
			Expense: flow.Expense.Float64(),
		}
	}
	return out
}

type categoryJSON struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

func toCategoryListJSON(cats []core.Category) []categoryJSON {
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON{
			Name:  c.Name,
			Type:  string(c.Type),
			Color: c.Color,
			Icon:  c.Icon,
		})
	}
	return out
}

// toCategoriesByTypeJSON groups the catalog by transaction type. Both
// keys are always present so clients can index without checking.
func toCategoriesByTypeJSON(cats []core.Category) map[string][]categoryJSON {
	out := map[string][]categoryJSON{
		string(core.Income):  {},
		string(core.Expense): {},
	}
	for _, c := range cats {
		key := string(c.Type)
		out[key] = append(out[key], categoryJSON{
			Name:  c.Name,
			Type:  key,
			Color: c.Color,
			Icon:  c.Icon,
		})
	}
	return out
}

type exportJSON struct {
	ExportInfo   services.ExportInfo `json:"export_info"`
	Transactions []transactionJSON   `json:"transactions"`
	Categories   []categoryJSON      `json:"categories"`
	Statistics   summaryJSON         `json:"statistics"`
}

func toExportJSON(e services.Export) exportJSON {
	return exportJSON{
		ExportInfo:   e.Info,
		Transactions: toTransactionListJSON(e.Transactions),
		Categories:   toCategoryListJSON(e.Categories),
		Statistics:   toSummaryJSON(e.Statistics),
	}
}

type importResultJSON struct {
	ImportedCount int      `json:"imported_count"`
	Errors        []string `json:"errors"`
}

func toImportResultJSON(r services.ImportResult) importResultJSON {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return importResultJSON{ImportedCount: r.Imported, Errors: errs}
}
