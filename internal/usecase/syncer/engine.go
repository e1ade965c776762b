package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

const (
	defaultChunkSize         = 50
	defaultRelationBatchSize = 100
	defaultConcurrency       = 1
)

// Engine reconciles the local store with the remote store.
//
// One Engine is built at startup and shared by every caller. At most one run
// (push or pull) is in flight at a time; a second caller is rejected, never
// queued.
type Engine struct {
	local   repository.LocalStore
	remote  repository.RemoteStore
	session repository.SessionProvider
	logger  logrus.FieldLogger
	clock   func() time.Time

	chunkSize         int
	relationBatchSize int
	concurrency       int
	historyEnabled    bool

	ids    *IDMap
	status statusPublisher

	timerMu sync.Mutex
	timer   *periodicTimer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithChunkSize sets how many distinct words a card chunk carries.
func WithChunkSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.chunkSize = size
		}
	}
}

// WithRelationBatchSize sets how many relations go into one upsert.
func WithRelationBatchSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.relationBatchSize = size
		}
	}
}

// WithConcurrency bounds how many card chunks are issued at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithHistoryEnabled turns the practice history phase on or off.
func WithHistoryEnabled(enabled bool) Option {
	return func(e *Engine) {
		e.historyEnabled = enabled
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEngine wires the stores into an idle engine.
func NewEngine(local repository.LocalStore, remote repository.RemoteStore, session repository.SessionProvider, logger logrus.FieldLogger, opts ...Option) *Engine {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}
	e := &Engine{
		local:             local,
		remote:            remote,
		session:           session,
		logger:            logger.WithField("component", "syncer"),
		clock:             time.Now,
		chunkSize:         defaultChunkSize,
		relationBatchSize: defaultRelationBatchSize,
		concurrency:       defaultConcurrency,
		historyEnabled:    true,
		ids:               NewIDMap(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncToRemote projects the local dataset onto the remote store.
//
// Phases run in order: word books, word cards, relations (only when the card
// phase reported no errors), practice history. Phase failures are collected
// into the result; nothing is returned as a Go error.
func (e *Engine) SyncToRemote(ctx context.Context) (result entity.SyncResult) {
	started := e.clock()
	pending, ok := e.status.tryBegin()
	if !ok {
		return rejectedResult(started)
	}

	result.StartedAt = started
	outcome := runOutcome{}
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("sync to remote aborted")
			result.Errors = append(result.Errors, fmt.Sprintf("internal error: %v", r))
			result.Success = false
			outcome.touchLastRun = true
			outcome.covered = 0
		}
		outcome.errors = result.Errors
		outcome.finishedAt = e.clock()
		result.FinishedAt = outcome.finishedAt
		e.status.finish(outcome)
	}()

	e.ids.Clear()

	owner, err := e.session.CurrentOwner(ctx)
	if err != nil {
		result.Errors = []string{authErrorMessage(err)}
		e.logger.WithError(err).Warn("sync to remote skipped: no session")
		return result
	}
	log := e.logger.WithField("owner", owner)

	data, err := e.local.GetAllLocalData(ctx)
	if err != nil {
		result.Errors = []string{fmt.Sprintf("load local data: %v", err)}
		log.WithError(err).Error("sync to remote aborted")
		return result
	}

	log.WithFields(logrus.Fields{
		"books": len(data.WordBooks),
		"cards": data.CardCount(),
	}).Info("sync to remote started")

	books := e.syncWordBooks(ctx, owner, data.WordBooks)
	result.SyncedItems.WordBooks = books.Count
	result.Created.WordBooks = books.Inserted
	result.Errors = append(result.Errors, books.Errors...)

	cards := e.syncWordCards(ctx, owner, data.WordBooks)
	result.SyncedItems.WordCards = cards.Count
	result.Created.WordCards = cards.Inserted
	result.Errors = append(result.Errors, cards.Errors...)

	if len(cards.Errors) == 0 {
		relations := e.syncRelations(ctx, owner, data.WordBooks)
		result.SyncedItems.Relations = relations.Count
		result.Created.Relations = relations.Inserted
		result.Errors = append(result.Errors, relations.Errors...)
	} else {
		log.WithField("card_errors", len(cards.Errors)).Warn("relation phase skipped: word card phase reported errors")
	}

	history := e.syncHistory(ctx, owner)
	result.SyncedItems.History = history.Count
	result.Created.History = history.Inserted
	result.Errors = append(result.Errors, history.Errors...)

	result.Success = len(result.Errors) == 0
	outcome.touchLastRun = true
	if result.Success {
		outcome.covered = pending
	}

	bookMaps, cardMaps := e.ids.Len()
	log.WithFields(logrus.Fields{
		"success":      result.Success,
		"books":        result.SyncedItems.WordBooks,
		"cards":        result.SyncedItems.WordCards,
		"relations":    result.SyncedItems.Relations,
		"history":      result.SyncedItems.History,
		"errors":       len(result.Errors),
		"mapped_books": bookMaps,
		"mapped_cards": cardMaps,
	}).Info("sync to remote finished")
	return result
}

// GetSyncStatus returns a copy of the current status.
func (e *Engine) GetSyncStatus() entity.SyncStatus {
	return e.status.snapshot()
}

// IncrementPendingChanges records one local mutation not yet pushed.
func (e *Engine) IncrementPendingChanges() {
	e.status.incrementPending()
}

// ClearErrors empties the error list of the status.
func (e *Engine) ClearErrors() {
	e.status.clearErrors()
}

// PruneOrphanCards hard-deletes remote cards that no relation references.
func (e *Engine) PruneOrphanCards(ctx context.Context) (int64, error) {
	owner, err := e.session.CurrentOwner(ctx)
	if err != nil {
		return 0, err
	}
	n, err := e.remote.DeleteOrphanCards(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("prune orphan cards: %w", err)
	}
	e.logger.WithField("deleted", n).Info("orphan word cards pruned")
	return n, nil
}

func rejectedResult(at time.Time) entity.SyncResult {
	return entity.SyncResult{
		Success:    false,
		Errors:     []string{entity.ErrSyncInProgress.Error()},
		StartedAt:  at,
		FinishedAt: at,
	}
}

func authErrorMessage(err error) string {
	if errors.Is(err, entity.ErrNotAuthenticated) {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", entity.ErrNotAuthenticated, err)
}
