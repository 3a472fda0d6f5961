package storage

import (
	"strings"

	"fintrack/internal/core"
)

const listColumns = "id, type, amount_cents, category, description, date, timestamp"

// buildListQuery translates a filter plus pagination into a parameterized
// SELECT. Every present predicate contributes exactly one ANDed condition;
// user values only ever travel through the args slice, never the query
// text. Results are ordered most recent calendar date first, ties broken
// by most recently recorded.
//
// offset is only applied when limit is set; a bare offset is a no-op.
func buildListQuery(f core.Filter, limit, offset int) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Month != "" {
		// YYYY-MM prefix match, independent of day
		conds = append(conds, "substr(date, 1, 7) = ?")
		args = append(args, f.Month)
	}
	if f.StartDate != "" {
		// Lexicographic comparison is chronological for ISO dates
		conds = append(conds, "date >= ?")
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		conds = append(conds, "date <= ?")
		args = append(args, f.EndDate)
	}
	if f.MinAmount != nil {
		conds = append(conds, "amount_cents >= ?")
		args = append(args, f.MinAmount.Cents)
	}
	if f.MaxAmount != nil {
		conds = append(conds, "amount_cents <= ?")
		args = append(args, f.MaxAmount.Cents)
	}
	if f.Search != "" {
		// Case-insensitive substring match (SQLite LIKE default)
		term := "%" + escapeLike(f.Search) + "%"
		conds = append(conds, `(description LIKE ? ESCAPE '\' OR category LIKE ? ESCAPE '\')`)
		args = append(args, term, term)
	}

	q := "SELECT " + listColumns + " FROM transactions"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY date DESC, timestamp DESC, id DESC"

	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			q += " OFFSET ?"
			args = append(args, offset)
		}
	}

	return q, args
}

// buildUpdateQuery produces the SET clause for a partial update. Only
// present patch fields appear; the timestamp is always refreshed and the
// row is re-queued for backup.
func buildUpdateQuery(p core.TransactionPatch, timestamp string, id int64) (string, []any) {
	var (
		sets []string
		args []any
	)

	if p.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, string(*p.Type))
	}
	if p.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, p.Amount.Cents)
	}
	if p.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, strings.TrimSpace(*p.Category))
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, strings.TrimSpace(*p.Description))
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, p.Date.String())
	}

	sets = append(sets, "timestamp = ?", "backup_status = 'pending'")
	args = append(args, timestamp, id)

	return "UPDATE transactions SET " + strings.Join(sets, ", ") + " WHERE id = ?", args
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
