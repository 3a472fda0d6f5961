package core

// MonthFlow holds the income and expense totals of one calendar month.
// Once a month appears in a breakdown both flows are present, even when
// one of them is zero.
type MonthFlow struct {
	Income  Money
	Expense Money
}

// Summary is the derived statistics of a transaction set. It is computed
// on demand and never persisted.
type Summary struct {
	TotalIncome       Money
	TotalExpenses     Money
	Balance           Money // income minus expenses, may be negative
	TransactionCount  int
	AverageAmount     Money // 0 when the set is empty
	IncomeByCategory  map[string]Money
	ExpenseByCategory map[string]Money
	Monthly           map[string]MonthFlow // keyed by YYYY-MM
}

// Summarize derives a Summary from a transaction sequence. It is a pure
// function: no I/O, no hidden state, identical input yields identical
// output. All accumulation happens in integer cents; the only rounding
// is the half-up cent rounding of the average.
func Summarize(txs []Transaction) Summary {
	s := Summary{
		IncomeByCategory:  make(map[string]Money),
		ExpenseByCategory: make(map[string]Money),
		Monthly:           make(map[string]MonthFlow),
	}

	var totalCents int64
	for _, t := range txs {
		cents := t.Amount.Cents
		totalCents += cents
		month := t.Date.MonthKey()
		flow := s.Monthly[month]

		switch t.Type {
		case Income:
			s.TotalIncome.Cents += cents
			s.IncomeByCategory[t.Category] = Money{Cents: s.IncomeByCategory[t.Category].Cents + cents}
			flow.Income.Cents += cents
		case Expense:
			s.TotalExpenses.Cents += cents
			s.ExpenseByCategory[t.Category] = Money{Cents: s.ExpenseByCategory[t.Category].Cents + cents}
			flow.Expense.Cents += cents
		}
		s.Monthly[month] = flow
	}

	s.Balance = Money{Cents: s.TotalIncome.Cents - s.TotalExpenses.Cents}
	s.TransactionCount = len(txs)
	if n := int64(len(txs)); n > 0 {
		// Half-up rounding to the nearest cent.
		s.AverageAmount = Money{Cents: (totalCents + n/2) / n}
	}
	return s
}
