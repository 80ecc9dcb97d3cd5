package repository

import (
	"context"

	"uplus-loyalty/internal/domain/model"
)

// LedgerRepository appends to and reads the points ledger. Historical entries
// are never mutated.
type LedgerRepository interface {
	Insert(ctx context.Context, tx Tx, e *model.LedgerEntry) (*model.LedgerEntry, error)
	// HasEntry reports whether the member already has an entry with this reason and source.
	HasEntry(ctx context.Context, tx Tx, userID, reason string, source model.PointsSource) (bool, error)
	// ListByUser returns up to limit entries, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error)
}
