package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eslsoft/vocsync/internal/entity"
)

// LocalStore keeps the on-device dataset in SQLite.
type LocalStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewLocalStore wraps a database opened with database.OpenLocal.
func NewLocalStore(db *sql.DB) *LocalStore {
	return &LocalStore{db: db, now: time.Now}
}

func (s *LocalStore) GetAllLocalData(ctx context.Context) (*entity.LocalData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := &entity.LocalData{WordBooks: []entity.WordBook{}}

	rows, err := s.db.QueryContext(ctx, `SELECT id, remote_id, name, target_language, created_at
		FROM word_books ORDER BY position, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list word books: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var (
			b       entity.WordBook
			lang    string
			created string
		)
		if err := rows.Scan(&b.ID, &b.RemoteID, &b.Name, &lang, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan word book: %w", err)
		}
		b.TargetLanguage = entity.ParseLanguage(lang)
		if b.CreatedAt, err = parseTime(created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("word book %s: %w", b.ID, err)
		}
		b.Words = []entity.WordCard{}
		index[b.ID] = len(data.WordBooks)
		data.WordBooks = append(data.WordBooks, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list word books: %w", err)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT word_book_id, id, word, ai_generated_info, learning_status, created_at
		FROM word_cards ORDER BY word_book_id, position, id`)
	if err != nil {
		return nil, fmt.Errorf("list word cards: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			bookID  string
			c       entity.WordCard
			info    sql.NullString
			status  string
			created string
		)
		if err := rows.Scan(&bookID, &c.ID, &c.Word, &info, &status, &created); err != nil {
			return nil, fmt.Errorf("scan word card: %w", err)
		}
		i, ok := index[bookID]
		if !ok {
			continue
		}
		if info.Valid && info.String != "" {
			c.AIGeneratedInfo = json.RawMessage(info.String)
		}
		c.LearningStatus = entity.ParseLearningStatus(status)
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("word card %s: %w", c.ID, err)
		}
		data.WordBooks[i].Words = append(data.WordBooks[i].Words, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list word cards: %w", err)
	}
	return data, nil
}

// SaveAllLocalData replaces every book and card in one transaction.
// Practice history is kept.
func (s *LocalStore) SaveAllLocalData(ctx context.Context, data *entity.LocalData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, b := range data.WordBooks {
		if err := b.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM word_cards`); err != nil {
		return fmt.Errorf("clear word cards: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM word_books`); err != nil {
		return fmt.Errorf("clear word books: %w", err)
	}

	bookStmt, err := tx.PrepareContext(ctx, `INSERT INTO word_books (id, remote_id, name, target_language, created_at, position)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare word book insert: %w", err)
	}
	defer bookStmt.Close()
	cardStmt, err := tx.PrepareContext(ctx, `INSERT INTO word_cards (id, word_book_id, word, ai_generated_info, learning_status, created_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare word card insert: %w", err)
	}
	defer cardStmt.Close()

	for i, b := range data.WordBooks {
		if _, err := bookStmt.ExecContext(ctx, b.ID, b.RemoteID, b.Name, b.TargetLanguage.Code(), s.formatTime(b.CreatedAt), i); err != nil {
			return fmt.Errorf("insert word book %s: %w", b.ID, err)
		}
		for j, c := range b.Words {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("word book %s: %w", b.ID, err)
			}
			var info any
			if len(c.AIGeneratedInfo) > 0 {
				info = string(c.AIGeneratedInfo)
			}
			status := c.LearningStatus
			if !status.Valid() {
				status = entity.LearningStatusNotStarted
			}
			if _, err := cardStmt.ExecContext(ctx, c.ID, b.ID, c.Word, info, string(status), s.formatTime(c.CreatedAt), j); err != nil {
				return fmt.Errorf("insert word card %s/%s: %w", b.ID, c.ID, err)
			}
		}
	}
	return tx.Commit()
}

func (s *LocalStore) SaveBookRemoteIDs(ctx context.Context, remoteIDs map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(remoteIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for localID, remoteID := range remoteIDs {
		if _, err := tx.ExecContext(ctx, `UPDATE word_books SET remote_id = ? WHERE id = ?`, remoteID, localID); err != nil {
			return fmt.Errorf("record remote id of word book %s: %w", localID, err)
		}
	}
	return tx.Commit()
}

func (s *LocalStore) GetHistoryEntries(ctx context.Context) ([]entity.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, word_card_id, practice_type, tense, mood, person,
		correct_answer, user_answer, is_correct, created_at
		FROM practice_history ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list practice history: %w", err)
	}
	defer rows.Close()

	var out []entity.HistoryEntry
	for rows.Next() {
		var (
			h       entity.HistoryEntry
			created string
		)
		if err := rows.Scan(&h.ID, &h.WordCardID, &h.PracticeType, &h.Tense, &h.Mood, &h.Person,
			&h.CorrectAnswer, &h.UserAnswer, &h.IsCorrect, &created); err != nil {
			return nil, fmt.Errorf("scan practice history: %w", err)
		}
		if h.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("practice history %s: %w", h.ID, err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list practice history: %w", err)
	}
	return out, nil
}

// AddHistoryEntry records one practice attempt. A missing ID is generated.
func (s *LocalStore) AddHistoryEntry(ctx context.Context, entry entity.HistoryEntry) (entity.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return entity.HistoryEntry{}, err
	}
	if entry.WordCardID == "" || entry.PracticeType == "" {
		return entity.HistoryEntry{}, fmt.Errorf("%w: history entry needs a card and a practice type", entity.ErrInvalidWordCard)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO practice_history
		(id, word_card_id, practice_type, tense, mood, person, correct_answer, user_answer, is_correct, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.WordCardID, entry.PracticeType, entry.Tense, entry.Mood, entry.Person,
		entry.CorrectAnswer, entry.UserAnswer, entry.IsCorrect, s.formatTime(entry.CreatedAt))
	if err != nil {
		return entity.HistoryEntry{}, fmt.Errorf("insert practice history: %w", err)
	}
	return entry, nil
}

func (s *LocalStore) formatTime(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Layouts accepted for stored timestamps: our own RFC 3339 output and the
// "YYYY-MM-DD HH:MM:SS[.SSS]" text of SQLite's datetime functions, read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse created_at %q: unsupported time format", v)
}
