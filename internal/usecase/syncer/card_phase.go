package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

// cardRef is one (book, card) row of the flattened local dataset.
type cardRef struct {
	bookID string
	card   entity.WordCard
}

func (r cardRef) key() string {
	return GenerateCardLocalKey(r.bookID, r.card.ID)
}

// syncWordCards flattens the cards of every book and reconciles them in
// chunks of distinct words. All rows sharing a word land in the same chunk, so
// a word is never inserted twice even when chunks run concurrently.
func (e *Engine) syncWordCards(ctx context.Context, owner string, books []entity.WordBook) entity.PhaseResult {
	var res entity.PhaseResult
	log := e.logger.WithField("phase", "word_cards")

	groups := make(map[string][]cardRef)
	var words []string
	for _, b := range books {
		for _, c := range b.Words {
			token := entity.NormalizeWordToken(c.Word)
			if token == "" || c.ID == "" {
				log.WithFields(logrus.Fields{"book": b.ID, "card": c.ID}).Warn("skipping word card without id or text")
				res.Skipped++
				continue
			}
			if _, seen := groups[token]; !seen {
				words = append(words, token)
			}
			groups[token] = append(groups[token], cardRef{bookID: b.ID, card: c})
		}
	}
	if len(words) == 0 {
		return res
	}

	chunks := lo.Chunk(words, e.chunkSize)
	results := make([]entity.PhaseResult, len(chunks))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = e.syncCardChunk(ctx, owner, i, chunk, groups)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		res.Merge(r)
	}
	log.WithFields(logrus.Fields{
		"chunks":   len(chunks),
		"count":    res.Count,
		"inserted": res.Inserted,
		"updated":  res.Updated,
		"errors":   len(res.Errors),
	}).Debug("phase finished")
	return res
}

// syncCardChunk reconciles one chunk. A failed existence check abandons the
// whole chunk with a single error; per-word failures do not stop the chunk.
func (e *Engine) syncCardChunk(ctx context.Context, owner string, index int, words []string, groups map[string][]cardRef) (res entity.PhaseResult) {
	log := e.logger.WithFields(logrus.Fields{"phase": "word_cards", "chunk": index})
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("word card chunk aborted")
			res.Errors = append(res.Errors, fmt.Sprintf("word cards: chunk %d: internal error: %v", index, r))
		}
	}()

	existing, err := e.remote.SelectCardsByWord(ctx, owner, words)
	if err != nil {
		log.WithError(err).Warn("word card chunk skipped")
		res.Errors = append(res.Errors, fmt.Sprintf("word cards: chunk %d (%d words): select existing: %v", index, len(words), err))
		return res
	}
	byWord := make(map[string]repository.RemoteCard, len(existing))
	for _, c := range existing {
		token := entity.NormalizeWordToken(c.Word)
		if _, dup := byWord[token]; !dup {
			byWord[token] = c
		}
	}

	for _, word := range words {
		refs := groups[word]
		payload := cardPayload(refs)

		if remote, ok := byWord[word]; ok {
			e.mapCardRefs(refs, remote.ID)
			if err := e.remote.UpdateCard(ctx, owner, remote.ID, repository.CardFields{AIGeneratedInfo: payload}); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("word card %q: update: %v", refs[0].card.Word, err))
				continue
			}
			res.Count++
			res.Updated++
			continue
		}

		id, err := e.remote.InsertCard(ctx, owner, repository.CardRow{
			Word:            refs[0].card.Word,
			AIGeneratedInfo: payload,
			CreatedAt:       earliestCreatedAt(refs),
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("word card %q: insert: %v", refs[0].card.Word, err))
			continue
		}
		e.mapCardRefs(refs, id)
		res.Count++
		res.Inserted++
	}
	return res
}

func (e *Engine) mapCardRefs(refs []cardRef, remoteID string) {
	for _, ref := range refs {
		e.ids.SetCardMapping(ref.key(), remoteID)
	}
}

// cardPayload picks the first non-empty AI payload among rows of the same word.
func cardPayload(refs []cardRef) json.RawMessage {
	for _, ref := range refs {
		if len(ref.card.AIGeneratedInfo) > 0 {
			return ref.card.AIGeneratedInfo
		}
	}
	return nil
}

func earliestCreatedAt(refs []cardRef) (t time.Time) {
	for _, ref := range refs {
		if ref.card.CreatedAt.IsZero() {
			continue
		}
		if t.IsZero() || ref.card.CreatedAt.Before(t) {
			t = ref.card.CreatedAt
		}
	}
	return t
}
