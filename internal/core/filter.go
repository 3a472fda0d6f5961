package core

import (
	"strconv"
	"strings"
	"time"
)

// Filter holds the optional predicates of a transaction query. Empty
// string fields and nil bounds impose no constraint; all present
// predicates are combined with logical AND.
type Filter struct {
	Type      string // "income", "expense", or "" / "all" for no constraint
	Category  string // exact match, "" / "all" for no constraint
	Month     string // YYYY-MM prefix of the date
	StartDate string // inclusive YYYY-MM-DD lower bound
	EndDate   string // inclusive YYYY-MM-DD upper bound
	Search    string // substring of description or category
	MinAmount *Money // inclusive lower amount bound
	MaxAmount *Money // inclusive upper amount bound
}

// Normalized trims every string field and collapses the "all" escape
// value (a UI convenience, not a real type or category) to "".
func (f Filter) Normalized() Filter {
	f.Type = strings.TrimSpace(f.Type)
	f.Category = strings.TrimSpace(f.Category)
	f.Month = strings.TrimSpace(f.Month)
	f.StartDate = strings.TrimSpace(f.StartDate)
	f.EndDate = strings.TrimSpace(f.EndDate)
	f.Search = strings.TrimSpace(f.Search)
	if f.Type == "all" {
		f.Type = ""
	}
	if f.Category == "all" {
		f.Category = ""
	}
	return f
}

// Validate checks the format of every present predicate. It expects a
// normalized filter.
func (f Filter) Validate() error {
	if f.Type != "" && !TransactionType(f.Type).Valid() {
		return ErrInvalidType
	}
	if f.Month != "" {
		if _, err := time.Parse("2006-01", f.Month); err != nil {
			return ErrInvalidMonth
		}
	}
	if f.StartDate != "" {
		if _, err := ParseDate(f.StartDate); err != nil {
			return err
		}
	}
	if f.EndDate != "" {
		if _, err := ParseDate(f.EndDate); err != nil {
			return err
		}
	}
	return nil
}

// IsZero reports whether no predicate is set.
func (f Filter) IsZero() bool {
	return f.Type == "" && f.Category == "" && f.Month == "" &&
		f.StartDate == "" && f.EndDate == "" && f.Search == "" &&
		f.MinAmount == nil && f.MaxAmount == nil
}

// CacheKey returns a canonical string for the filter, usable as a cache
// key: identical predicate sets always produce identical keys.
func (f Filter) CacheKey() string {
	var b strings.Builder
	b.WriteString("type=" + f.Type)
	b.WriteString("|cat=" + f.Category)
	b.WriteString("|month=" + f.Month)
	b.WriteString("|from=" + f.StartDate)
	b.WriteString("|to=" + f.EndDate)
	b.WriteString("|q=" + f.Search)
	b.WriteString("|min=")
	if f.MinAmount != nil {
		b.WriteString(strconv.FormatInt(f.MinAmount.Cents, 10))
	}
	b.WriteString("|max=")
	if f.MaxAmount != nil {
		b.WriteString(strconv.FormatInt(f.MaxAmount.Cents, 10))
	}
	return b.String()
}
