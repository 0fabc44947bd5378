package storage

import (
	"context"

	"linkboard/internal/domain"
)

// SnapshotRepository keeps the last list rendered for each management site,
// so a later process can tell what the operator is looking at.
type SnapshotRepository interface {
	// SaveSnapshot replaces the stored list for siteID.
	SaveSnapshot(ctx context.Context, siteID string, links []domain.Link) error

	// GetSnapshot returns the stored list for siteID, newest (highest id) first.
	GetSnapshot(ctx context.Context, siteID string) ([]domain.Link, error)

	// Close gracefully shuts down the repository connection.
	Close() error
}
