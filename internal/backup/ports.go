package backup

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound backup targets.
type (
	// Appender mirrors a transaction to the backup target. Appending an
	// id that already exists replaces the previous row.
	Appender interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// Remover deletes a mirrored transaction by id. Removing an unknown
	// id is not an error; the mirror is best-effort.
	Remover interface {
		RemoveTransaction(ctx context.Context, id int64) error
	}

	// Target is a complete backup destination.
	Target interface {
		Appender
		Remover
	}
)
