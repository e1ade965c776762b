package syncer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

// SyncFromRemote merges remote books, cards and relations into the local
// store. Only missing entities are added: local-only data is never deleted and
// the learning status of cards already present locally is left alone.
//
// SyncedItems and Created both count the entities added locally.
func (e *Engine) SyncFromRemote(ctx context.Context) (result entity.SyncResult) {
	started := e.clock()
	if _, ok := e.status.tryBegin(); !ok {
		return rejectedResult(started)
	}

	result.StartedAt = started
	outcome := runOutcome{}
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("sync from remote aborted")
			result.Errors = append(result.Errors, fmt.Sprintf("internal error: %v", r))
			result.Success = false
			outcome.touchLastRun = true
		}
		outcome.errors = result.Errors
		outcome.finishedAt = e.clock()
		result.FinishedAt = outcome.finishedAt
		e.status.finish(outcome)
	}()

	owner, err := e.session.CurrentOwner(ctx)
	if err != nil {
		result.Errors = []string{authErrorMessage(err)}
		e.logger.WithError(err).Warn("sync from remote skipped: no session")
		return result
	}
	log := e.logger.WithFields(logrus.Fields{"owner": owner, "direction": "pull"})

	outcome.touchLastRun = true

	remoteBooks, err := e.remote.ListBooks(ctx, owner)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("pull: list word books: %v", err))
		return result
	}
	remoteCards, err := e.remote.ListCards(ctx, owner)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("pull: list word cards: %v", err))
		return result
	}
	relations, err := e.remote.ListRelations(ctx, owner)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("pull: list relations: %v", err))
		return result
	}

	data, err := e.local.GetAllLocalData(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("pull: load local data: %v", err))
		return result
	}

	added, changed := e.mergeRemote(data, remoteBooks, remoteCards, relations, log)
	if changed {
		if err := e.local.SaveAllLocalData(ctx, data); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("pull: save local data: %v", err))
			return result
		}
	}

	result.SyncedItems = added
	result.Created = added
	result.Success = true
	log.WithFields(logrus.Fields{
		"books":     added.WordBooks,
		"cards":     added.WordCards,
		"relations": added.Relations,
	}).Info("sync from remote finished")
	return result
}

// mergeRemote adds remote entities missing from data in place.
// changed is true when data needs to be saved.
func (e *Engine) mergeRemote(data *entity.LocalData, books []repository.RemoteBook, cards []repository.RemoteCard, relations []repository.RelationRow, log logrus.FieldLogger) (added entity.SyncedItems, changed bool) {
	cardsByID := make(map[string]repository.RemoteCard, len(cards))
	for _, c := range cards {
		cardsByID[c.ID] = c
	}
	relsByBook := make(map[string][]repository.RelationRow)
	for _, r := range relations {
		relsByBook[r.WordBookID] = append(relsByBook[r.WordBookID], r)
	}

	for _, rb := range books {
		i := findLocalBook(data.WordBooks, rb)
		if i < 0 {
			data.WordBooks = append(data.WordBooks, entity.WordBook{
				ID:             uuid.NewString(),
				RemoteID:       rb.ID,
				Name:           rb.Name,
				TargetLanguage: rb.TargetLanguage,
				CreatedAt:      rb.CreatedAt,
				Words:          []entity.WordCard{},
			})
			i = len(data.WordBooks) - 1
			added.WordBooks++
			changed = true
		} else if data.WordBooks[i].RemoteID == "" {
			data.WordBooks[i].RemoteID = rb.ID
			changed = true
		}

		book := &data.WordBooks[i]
		for _, rel := range relsByBook[rb.ID] {
			card, ok := cardsByID[rel.WordCardID]
			if !ok {
				log.WithFields(logrus.Fields{"book": rb.ID, "card": rel.WordCardID}).Warn("relation points at unknown remote card")
				continue
			}
			if book.FindWord(card.Word) >= 0 {
				continue
			}
			book.Words = append(book.Words, entity.WordCard{
				ID:              uuid.NewString(),
				Word:            card.Word,
				AIGeneratedInfo: card.AIGeneratedInfo,
				LearningStatus:  entity.ParseLearningStatus(string(rel.LearningStatus)),
				CreatedAt:       card.CreatedAt,
			})
			added.WordCards++
			added.Relations++
			changed = true
		}
	}
	return added, changed
}

// findLocalBook matches by remembered remote ID first, then by name among
// books not yet bound to another remote row.
func findLocalBook(books []entity.WordBook, rb repository.RemoteBook) int {
	for i := range books {
		if books[i].RemoteID == rb.ID {
			return i
		}
	}
	for i := range books {
		if books[i].RemoteID == "" && books[i].Name == rb.Name {
			return i
		}
	}
	return -1
}
