package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

// syncHistory appends local practice history entries that the remote store
// does not have yet. History is optional: a remote store without the table or
// without write access turns the phase into a silent no-op. Any other probe
// failure is a phase error.
func (e *Engine) syncHistory(ctx context.Context, owner string) entity.PhaseResult {
	var res entity.PhaseResult
	log := e.logger.WithField("phase", "history")
	if !e.historyEnabled {
		return res
	}

	caps, err := e.remote.Capabilities(ctx)
	if errors.Is(err, entity.ErrCapabilityMissing) {
		log.WithError(err).Debug("remote store denies practice history; phase skipped")
		return res
	}
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("practice history: capability check: %v", err))
		return res
	}
	if !caps.History {
		log.Debug("remote store has no practice history; phase skipped")
		return res
	}

	entries, err := e.local.GetHistoryEntries(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("practice history: load local entries: %v", err))
		return res
	}

	for _, entry := range entries {
		fields := logrus.Fields{"entry": entry.ID, "card": entry.WordCardID}
		if e.ids.IsCardLocalIDAmbiguous(entry.WordCardID) {
			log.WithFields(fields).Warn("skipping history entry: card id maps to different words in different books")
			res.Skipped++
			continue
		}
		cardRemote, ok := e.ids.GetCardRemoteIDByLocalID(entry.WordCardID)
		if !ok {
			log.WithFields(fields).Warn("skipping history entry with unmapped card")
			res.Skipped++
			continue
		}
		if entry.CreatedAt.IsZero() {
			log.WithFields(fields).Warn("skipping history entry without a timestamp")
			res.Skipped++
			continue
		}
		key := repository.HistoryKey{
			WordCardID:   cardRemote,
			PracticeType: entry.PracticeType,
			Tense:        entry.Tense,
			Mood:         entry.Mood,
			Person:       entry.Person,
			CreatedAt:    entry.CreatedAt,
		}
		_, found, err := e.remote.SelectHistoryByNaturalKey(ctx, owner, key)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("practice history %s: lookup: %v", entry.ID, err))
			continue
		}
		if found {
			continue
		}
		row := repository.HistoryRow{
			HistoryKey:    key,
			CorrectAnswer: entry.CorrectAnswer,
			UserAnswer:    entry.UserAnswer,
			IsCorrect:     entry.IsCorrect,
		}
		if err := e.remote.InsertHistory(ctx, owner, row); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("practice history %s: insert: %v", entry.ID, err))
			continue
		}
		res.Count++
		res.Inserted++
	}

	log.WithFields(logrus.Fields{
		"count":   res.Count,
		"skipped": res.Skipped,
		"errors":  len(res.Errors),
	}).Debug("phase finished")
	return res
}
