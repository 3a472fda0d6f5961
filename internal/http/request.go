package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// parseFilter builds a transaction filter from query parameters.
// Absent parameters impose no constraint; malformed numeric bounds are
// a client error.
func parseFilter(query url.Values) (core.Filter, error) {
	f := core.Filter{
		Type:      query.Get("type"),
		Category:  query.Get("category"),
		Month:     query.Get("month"),
		StartDate: query.Get("start_date"),
		EndDate:   query.Get("end_date"),
		Search:    query.Get("search"),
	}

	if v := strings.TrimSpace(query.Get("min_amount")); v != "" {
		m, err := core.ParseAmountBound(v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("min_amount: %w", err)
		}
		f.MinAmount = &m
	}
	if v := strings.TrimSpace(query.Get("max_amount")); v != "" {
		m, err := core.ParseAmountBound(v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("max_amount: %w", err)
		}
		f.MaxAmount = &m
	}

	return f, nil
}

// parsePagination reads limit and offset query parameters. Zero values
// mean "not set"; an offset without a limit has no effect downstream.
func parsePagination(query url.Values) (limit, offset int, err error) {
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("limit: %w", core.ErrInvalidPage)
		}
	}
	if v := strings.TrimSpace(query.Get("offset")); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset: %w", core.ErrInvalidPage)
		}
	}
	return limit, offset, nil
}

// transactionInput is the incoming JSON shape for creates and imports.
// Amounts are accepted as JSON numbers or as decimal strings.
type transactionInput struct {
	Type        string      `json:"type"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

func (in transactionInput) toTransaction() (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(in.Amount.String())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}

	date, err := core.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return core.Transaction{}, err
	}

	return core.Transaction{
		Type:        core.TransactionType(strings.TrimSpace(in.Type)),
		Amount:      core.Money{Cents: cents},
		Category:    in.Category,
		Description: in.Description,
		Date:        date,
	}, nil
}

// toTransactionLenient converts a record without failing: fields that
// do not parse are left as zero values for validation to reject.
func (in transactionInput) toTransactionLenient() core.Transaction {
	t := core.Transaction{
		Type:        core.TransactionType(strings.TrimSpace(in.Type)),
		Category:    in.Category,
		Description: in.Description,
	}
	if cents, err := core.ParseDecimalToCents(in.Amount.String()); err == nil {
		t.Amount = core.Money{Cents: cents}
	}
	if date, err := core.ParseDate(strings.TrimSpace(in.Date)); err == nil {
		t.Date = date
	}
	return t
}

// patchInput is the incoming JSON shape for partial updates. Absent
// keys leave the stored field untouched.
type patchInput struct {
	Type        *string      `json:"type"`
	Amount      *json.Number `json:"amount"`
	Category    *string      `json:"category"`
	Description *string      `json:"description"`
	Date        *string      `json:"date"`
}

func (in patchInput) toPatch() (core.TransactionPatch, error) {
	var p core.TransactionPatch

	if in.Type != nil {
		typ := core.TransactionType(strings.TrimSpace(*in.Type))
		p.Type = &typ
	}
	if in.Amount != nil {
		cents, err := core.ParseDecimalToCents(in.Amount.String())
		if err != nil {
			return core.TransactionPatch{}, fmt.Errorf("amount: %w", err)
		}
		p.Amount = &core.Money{Cents: cents}
	}
	if in.Category != nil {
		p.Category = in.Category
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.Date != nil {
		date, err := core.ParseDate(strings.TrimSpace(*in.Date))
		if err != nil {
			return core.TransactionPatch{}, err
		}
		p.Date = &date
	}

	return p, nil
}

// decodeJSONBody decodes a request body into dst, rejecting unknown
// top-level syntax errors with a uniform message.
func decodeJSONBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// parseIDPath extracts the {id} path value as a positive integer.
func parseIDPath(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid transaction id %q", raw)
	}
	return id, nil
}
