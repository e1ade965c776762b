package syncer

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

type relationPair struct {
	book string
	card string
}

// syncRelations upserts every resolvable (book, card, status) triple in
// batches. Triples whose book or card was not mapped in this run are skipped
// with a warning; they are not errors.
func (e *Engine) syncRelations(ctx context.Context, owner string, books []entity.WordBook) entity.PhaseResult {
	var res entity.PhaseResult
	log := e.logger.WithField("phase", "relations")

	index := make(map[relationPair]int)
	var rows []repository.RelationRow
	for _, b := range books {
		bookRemote, bookOK := e.ids.GetBookRemoteID(b.ID)
		for _, c := range b.Words {
			cardRemote, cardOK := e.ids.GetCardRemoteID(GenerateCardLocalKey(b.ID, c.ID))
			if !bookOK || !cardOK {
				log.WithFields(logrus.Fields{
					"book":        b.ID,
					"card":        c.ID,
					"word":        c.Word,
					"book_mapped": bookOK,
					"card_mapped": cardOK,
				}).Warn("skipping relation with unmapped entity")
				res.Skipped++
				continue
			}
			status := c.LearningStatus
			if !status.Valid() {
				status = entity.LearningStatusNotStarted
			}
			pair := relationPair{book: bookRemote, card: cardRemote}
			if i, dup := index[pair]; dup {
				// A single upsert statement cannot touch the same row twice.
				rows[i].LearningStatus = status
				continue
			}
			index[pair] = len(rows)
			rows = append(rows, repository.RelationRow{
				WordBookID:     bookRemote,
				WordCardID:     cardRemote,
				LearningStatus: status,
			})
		}
	}
	if len(rows) == 0 {
		return res
	}

	for i, batch := range lo.Chunk(rows, e.relationBatchSize) {
		if err := e.remote.UpsertRelations(ctx, owner, batch, repository.RelationConflictKey); err != nil {
			log.WithError(err).WithField("batch", i).Warn("relation batch failed")
			res.Errors = append(res.Errors, fmt.Sprintf("relations: batch %d (%d rows): upsert: %v", i, len(batch), err))
			continue
		}
		res.Count += len(batch)
	}

	log.WithFields(logrus.Fields{
		"count":   res.Count,
		"skipped": res.Skipped,
		"errors":  len(res.Errors),
	}).Debug("phase finished")
	return res
}
