package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eslsoft/vocsync/internal/entity"
)

// RelationConflictKey is the natural key relation upserts resolve conflicts on.
const RelationConflictKey = "word_book_id,word_card_id"

// HistoryTable is the remote table probed before syncing practice history.
const HistoryTable = "practice_history"

// RemoteBook is a word book row as stored remotely.
type RemoteBook struct {
	ID             string
	Name           string
	TargetLanguage entity.Language
	CreatedAt      time.Time
}

// BookRow carries the columns of a word book to insert.
type BookRow struct {
	Name           string
	TargetLanguage entity.Language
	CreatedAt      time.Time
}

// BookFields are the mutable columns of a remote word book.
type BookFields struct {
	Name           string
	TargetLanguage entity.Language
}

// RemoteCard is a word card row as stored remotely.
type RemoteCard struct {
	ID              string
	Word            string
	AIGeneratedInfo json.RawMessage
	CreatedAt       time.Time
}

// CardRow carries the columns of a word card to insert.
type CardRow struct {
	Word            string
	AIGeneratedInfo json.RawMessage
	CreatedAt       time.Time
}

// CardFields are the mutable columns of a remote word card.
// A nil AIGeneratedInfo leaves the stored payload untouched.
type CardFields struct {
	AIGeneratedInfo json.RawMessage
}

// RelationRow links a remote book to a remote card.
type RelationRow struct {
	WordBookID     string
	WordCardID     string
	LearningStatus entity.LearningStatus
}

// HistoryKey is the natural key of a practice history entry.
type HistoryKey struct {
	WordCardID   string
	PracticeType string
	Tense        string
	Mood         string
	Person       string
	CreatedAt    time.Time
}

// HistoryRow is a practice history entry to insert.
type HistoryRow struct {
	HistoryKey
	CorrectAnswer string
	UserAnswer    string
	IsCorrect     bool
}

// Capabilities describes optional features of the remote store.
type Capabilities struct {
	History bool
}

// RemoteStore abstracts the relational backend. Every call is scoped to owner.
type RemoteStore interface {
	SelectBooksByName(ctx context.Context, owner string, names []string) ([]RemoteBook, error)
	SelectBooksByID(ctx context.Context, owner string, ids []string) ([]RemoteBook, error)
	BatchInsertBooks(ctx context.Context, owner string, rows []BookRow) ([]RemoteBook, error)
	UpdateBook(ctx context.Context, owner, id string, fields BookFields) error

	// SelectCardsByWord matches on the normalized word text.
	SelectCardsByWord(ctx context.Context, owner string, words []string) ([]RemoteCard, error)
	InsertCard(ctx context.Context, owner string, row CardRow) (string, error)
	UpdateCard(ctx context.Context, owner, id string, fields CardFields) error

	UpsertRelations(ctx context.Context, owner string, rows []RelationRow, conflictKey string) error

	TableExists(ctx context.Context, name string) (bool, error)
	Capabilities(ctx context.Context) (Capabilities, error)
	// SelectHistoryByNaturalKey returns the ID of a matching entry; found is false when absent.
	SelectHistoryByNaturalKey(ctx context.Context, owner string, key HistoryKey) (id string, found bool, err error)
	InsertHistory(ctx context.Context, owner string, row HistoryRow) error

	ListBooks(ctx context.Context, owner string) ([]RemoteBook, error)
	ListCards(ctx context.Context, owner string) ([]RemoteCard, error)
	ListRelations(ctx context.Context, owner string) ([]RelationRow, error)

	// DeleteOrphanCards hard-deletes cards that no relation references.
	DeleteOrphanCards(ctx context.Context, owner string) (int64, error)
}
