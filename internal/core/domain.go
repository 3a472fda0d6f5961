package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	TransactionType string

	// Date is a calendar date without a time component.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one recorded income or expense event.
	Transaction struct {
		ID          int64
		Type        TransactionType
		Amount      Money
		Category    string
		Description string
		Date        Date
		Timestamp   time.Time // server-assigned, refreshed on every mutation
	}

	// TransactionPatch is a partial update: nil fields are left untouched.
	TransactionPatch struct {
		Type        *TransactionType
		Amount      *Money
		Category    *string
		Description *string
		Date        *Date
	}

	// Category is advisory catalog metadata; transactions reference
	// categories by free string, not by key.
	Category struct {
		Name  string
		Type  TransactionType
		Color string
		Icon  string
	}
)

var (
	ErrInvalidType        = errors.New("transaction type must be 'income' or 'expense'")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("date must be in YYYY-MM-DD format")
	ErrInvalidMonth       = errors.New("month must be in YYYY-MM format")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyPatch         = errors.New("no fields to update")
	ErrInvalidPage        = errors.New("limit and offset must not be negative")

	ErrNotFound = errors.New("transaction not found")
)

// validationErrs is the set of errors that map to a client-side problem.
var validationErrs = []error{
	ErrInvalidType,
	ErrInvalidAmount,
	ErrInvalidDate,
	ErrInvalidMonth,
	ErrEmptyCategory,
	ErrEmptyDescription,
	ErrDescriptionTooLong,
	ErrEmptyPatch,
	ErrInvalidPage,
}

// IsValidation reports whether err is (or wraps) a validation error,
// as opposed to a not-found or storage failure.
func IsValidation(err error) bool {
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseDate parses an ISO YYYY-MM-DD date string.
func ParseDate(s string) (Date, error) {
	ts, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: ts}, nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String renders the date in ISO form, which sorts lexicographically
// in chronological order.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MonthKey returns the YYYY-MM prefix used for monthly grouping.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return t.Date.Validate()
}

// Normalized returns a copy with category and description trimmed.
func (t Transaction) Normalized() Transaction {
	t.Category = strings.TrimSpace(t.Category)
	t.Description = strings.TrimSpace(t.Description)
	return t
}

// IsEmpty reports whether the patch carries no fields at all.
func (p TransactionPatch) IsEmpty() bool {
	return p.Type == nil && p.Amount == nil && p.Category == nil &&
		p.Description == nil && p.Date == nil
}

func (p TransactionPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return ErrEmptyCategory
	}
	if p.Description != nil {
		if strings.TrimSpace(*p.Description) == "" {
			return ErrEmptyDescription
		}
		if len(*p.Description) > 200 {
			return ErrDescriptionTooLong
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns t with the patch's present fields applied. String fields
// are trimmed the same way creation trims them.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}
