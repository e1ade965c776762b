package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

// DBTX is the subset of pgxpool.Pool the remote store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type remoteStore struct {
	db      DBTX
	timeout time.Duration
	now     func() time.Time
}

// NewRemoteStore builds the PostgreSQL-backed remote store. A positive timeout
// bounds every request.
func NewRemoteStore(db DBTX, timeout time.Duration) repository.RemoteStore {
	return &remoteStore{db: db, timeout: timeout, now: time.Now}
}

func (s *remoteStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

const selectBookColumns = `SELECT id::text, name, target_language, created_at FROM word_books`

func (s *remoteStore) SelectBooksByName(ctx context.Context, owner string, names []string) ([]repository.RemoteBook, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return s.queryBooks(ctx, selectBookColumns+` WHERE user_id = $1 AND name = ANY($2) ORDER BY created_at, id`, owner, names)
}

func (s *remoteStore) SelectBooksByID(ctx context.Context, owner string, ids []string) ([]repository.RemoteBook, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryBooks(ctx, selectBookColumns+` WHERE user_id = $1 AND id::text = ANY($2)`, owner, ids)
}

func (s *remoteStore) ListBooks(ctx context.Context, owner string) ([]repository.RemoteBook, error) {
	return s.queryBooks(ctx, selectBookColumns+` WHERE user_id = $1 ORDER BY created_at, id`, owner)
}

func (s *remoteStore) BatchInsertBooks(ctx context.Context, owner string, rows []repository.BookRow) ([]repository.RemoteBook, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	names := lo.Map(rows, func(r repository.BookRow, _ int) string { return r.Name })
	langs := lo.Map(rows, func(r repository.BookRow, _ int) string { return r.TargetLanguage.Code() })
	created := lo.Map(rows, func(r repository.BookRow, _ int) time.Time { return s.orNow(r.CreatedAt) })

	const q = `INSERT INTO word_books (user_id, name, target_language, created_at)
		SELECT $1::text, t.name, t.lang, t.created_at
		FROM unnest($2::text[], $3::text[], $4::timestamptz[]) AS t(name, lang, created_at)
		RETURNING id::text, name, target_language, created_at`
	return s.queryBooks(ctx, q, owner, names, langs, created)
}

func (s *remoteStore) UpdateBook(ctx context.Context, owner, id string, fields repository.BookFields) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.db.Exec(ctx, `UPDATE word_books SET name = $3, target_language = $4, updated_at = now()
		WHERE user_id = $1 AND id::text = $2`, owner, id, fields.Name, fields.TargetLanguage.Code())
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrWordBookNotFound
	}
	return nil
}

func (s *remoteStore) queryBooks(ctx context.Context, q string, args ...any) ([]repository.RemoteBook, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, translatePgError(err)
	}
	books, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.RemoteBook, error) {
		var (
			b    repository.RemoteBook
			lang string
		)
		err := row.Scan(&b.ID, &b.Name, &lang, &b.CreatedAt)
		b.TargetLanguage = entity.ParseLanguage(lang)
		return b, err
	})
	if err != nil {
		return nil, translatePgError(err)
	}
	return books, nil
}

const selectCardColumns = `SELECT id::text, word, ai_generated_info, created_at FROM word_cards`

func (s *remoteStore) SelectCardsByWord(ctx context.Context, owner string, words []string) ([]repository.RemoteCard, error) {
	tokens := normalizeWordTokens(words)
	if len(tokens) == 0 {
		return nil, nil
	}
	return s.queryCards(ctx, selectCardColumns+` WHERE user_id = $1 AND lower(btrim(word)) = ANY($2) ORDER BY created_at, id`, owner, tokens)
}

func (s *remoteStore) ListCards(ctx context.Context, owner string) ([]repository.RemoteCard, error) {
	return s.queryCards(ctx, selectCardColumns+` WHERE user_id = $1 ORDER BY created_at, id`, owner)
}

func (s *remoteStore) InsertCard(ctx context.Context, owner string, row repository.CardRow) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var id string
	err := s.db.QueryRow(ctx, `INSERT INTO word_cards (user_id, word, ai_generated_info, created_at)
		VALUES ($1, $2, $3::jsonb, $4) RETURNING id::text`,
		owner, row.Word, jsonParam(row.AIGeneratedInfo), s.orNow(row.CreatedAt)).Scan(&id)
	if err != nil {
		return "", translatePgError(err)
	}
	return id, nil
}

func (s *remoteStore) UpdateCard(ctx context.Context, owner, id string, fields repository.CardFields) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.db.Exec(ctx, `UPDATE word_cards
		SET ai_generated_info = COALESCE($3::jsonb, ai_generated_info), updated_at = now()
		WHERE user_id = $1 AND id::text = $2`, owner, id, jsonParam(fields.AIGeneratedInfo))
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrWordCardNotFound
	}
	return nil
}

func (s *remoteStore) queryCards(ctx context.Context, q string, args ...any) ([]repository.RemoteCard, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, translatePgError(err)
	}
	cards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.RemoteCard, error) {
		var (
			c    repository.RemoteCard
			info []byte
		)
		err := row.Scan(&c.ID, &c.Word, &info, &c.CreatedAt)
		if len(info) > 0 {
			c.AIGeneratedInfo = info
		}
		return c, err
	})
	if err != nil {
		return nil, translatePgError(err)
	}
	return cards, nil
}

func (s *remoteStore) UpsertRelations(ctx context.Context, owner string, rows []repository.RelationRow, conflictKey string) error {
	if len(rows) == 0 {
		return nil
	}
	target, err := conflictTarget(conflictKey)
	if err != nil {
		return err
	}
	books := lo.Map(rows, func(r repository.RelationRow, _ int) string { return r.WordBookID })
	cards := lo.Map(rows, func(r repository.RelationRow, _ int) string { return r.WordCardID })
	statuses := lo.Map(rows, func(r repository.RelationRow, _ int) string { return string(r.LearningStatus) })

	q := fmt.Sprintf(`INSERT INTO word_book_words (user_id, word_book_id, word_card_id, learning_status)
		SELECT $1::text, t.book::uuid, t.card::uuid, t.status
		FROM unnest($2::text[], $3::text[], $4::text[]) AS t(book, card, status)
		ON CONFLICT (%s) DO UPDATE SET learning_status = EXCLUDED.learning_status, updated_at = now()`, target)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.db.Exec(ctx, q, owner, books, cards, statuses); err != nil {
		return translatePgError(err)
	}
	return nil
}

func (s *remoteStore) ListRelations(ctx context.Context, owner string) ([]repository.RelationRow, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.Query(ctx, `SELECT word_book_id::text, word_card_id::text, learning_status
		FROM word_book_words WHERE user_id = $1 ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, translatePgError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.RelationRow, error) {
		var (
			r      repository.RelationRow
			status string
		)
		err := row.Scan(&r.WordBookID, &r.WordCardID, &status)
		r.LearningStatus = entity.ParseLearningStatus(status)
		return r, err
	})
	if err != nil {
		return nil, translatePgError(err)
	}
	return out, nil
}

func (s *remoteStore) TableExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, name).Scan(&exists); err != nil {
		return false, translatePgError(err)
	}
	return exists, nil
}

// Capabilities reports history support only when the table exists and the
// connected role may write to it.
func (s *remoteStore) Capabilities(ctx context.Context) (repository.Capabilities, error) {
	exists, err := s.TableExists(ctx, repository.HistoryTable)
	if err != nil || !exists {
		return repository.Capabilities{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var writable bool
	err = s.db.QueryRow(ctx, `SELECT has_table_privilege($1, 'SELECT')
		AND has_table_privilege($1, 'INSERT')`, repository.HistoryTable).Scan(&writable)
	if err != nil {
		return repository.Capabilities{}, translatePgError(err)
	}
	return repository.Capabilities{History: writable}, nil
}

func (s *remoteStore) SelectHistoryByNaturalKey(ctx context.Context, owner string, key repository.HistoryKey) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var id string
	err := s.db.QueryRow(ctx, `SELECT id::text FROM practice_history
		WHERE user_id = $1 AND word_card_id::text = $2 AND practice_type = $3
		  AND tense = $4 AND mood = $5 AND person = $6 AND created_at = $7
		LIMIT 1`,
		owner, key.WordCardID, key.PracticeType, key.Tense, key.Mood, key.Person, key.CreatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, translatePgError(err)
	}
	return id, true, nil
}

// InsertHistory stores row.CreatedAt unchanged: it is part of the natural key
// SelectHistoryByNaturalKey matches on.
func (s *remoteStore) InsertHistory(ctx context.Context, owner string, row repository.HistoryRow) error {
	if row.CreatedAt.IsZero() {
		return fmt.Errorf("practice history for card %s: missing created_at", row.WordCardID)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.Exec(ctx, `INSERT INTO practice_history
		(user_id, word_card_id, practice_type, tense, mood, person, correct_answer, user_answer, is_correct, created_at)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10)`,
		owner, row.WordCardID, row.PracticeType, row.Tense, row.Mood, row.Person,
		row.CorrectAnswer, row.UserAnswer, row.IsCorrect, row.CreatedAt)
	if err != nil {
		return translatePgError(err)
	}
	return nil
}

func (s *remoteStore) DeleteOrphanCards(ctx context.Context, owner string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.db.Exec(ctx, `DELETE FROM word_cards c
		WHERE c.user_id = $1
		  AND NOT EXISTS (SELECT 1 FROM word_book_words r WHERE r.word_card_id = c.id)`, owner)
	if err != nil {
		return 0, translatePgError(err)
	}
	return tag.RowsAffected(), nil
}

func (s *remoteStore) orNow(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t
}

// conflictTarget turns a comma separated column list into a quoted ON CONFLICT target.
func conflictTarget(key string) (string, error) {
	cols := lo.FilterMap(strings.Split(key, ","), func(c string, _ int) (string, bool) {
		c = strings.TrimSpace(c)
		return c, c != ""
	})
	if len(cols) == 0 {
		return "", fmt.Errorf("empty conflict key")
	}
	quoted := lo.Map(cols, func(c string, _ int) string { return pgx.Identifier{c}.Sanitize() })
	return strings.Join(quoted, ", "), nil
}

// jsonParam maps an empty payload to SQL NULL.
func jsonParam(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42P01", pgErr.Code == "42501":
			return fmt.Errorf("%w: %s", entity.ErrCapabilityMissing, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01":
			return fmt.Errorf("%w: %s", entity.ErrRemoteUnavailable, pgErr.Message)
		}
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", entity.ErrRemoteUnavailable, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", entity.ErrRemoteUnavailable, err)
	}
	return err
}
