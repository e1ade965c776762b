package repository

import (
	"context"

	"github.com/eslsoft/vocsync/internal/entity"
)

// LocalStore abstracts the client-side persisted dataset.
type LocalStore interface {
	// GetAllLocalData returns every word book with its embedded word cards.
	GetAllLocalData(ctx context.Context) (*entity.LocalData, error)
	// SaveAllLocalData replaces the stored books and cards with data.
	SaveAllLocalData(ctx context.Context, data *entity.LocalData) error
	GetHistoryEntries(ctx context.Context) ([]entity.HistoryEntry, error)
	// SaveBookRemoteIDs records resolved remote identifiers keyed by local book ID.
	SaveBookRemoteIDs(ctx context.Context, remoteIDs map[string]string) error
}
