package sheets

import (
	"context"

	"cassa/internal/core"
)

// LedgerMirror copies committed ledger events to an external spreadsheet for the owner's
// accountant. The mirror is append-only: updates and deletes become new rows.
type LedgerMirror interface {
	MirrorEvent(ctx context.Context, e core.LedgerEvent) (rowRef string, err error)
}

// NopMirror discards events when no spreadsheet is configured.
type NopMirror struct{}

func (NopMirror) MirrorEvent(context.Context, core.LedgerEvent) (string, error) { return "", nil }
