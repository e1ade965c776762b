package syncer

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

// syncWordBooks resolves every local book to a remote row, inserting the ones
// that have no counterpart and updating the rest.
//
// Books remember the remote ID they were resolved to in earlier runs, so a
// renamed book still updates its original row. Books without a remembered ID
// (or whose remembered row is gone) are matched by name.
func (e *Engine) syncWordBooks(ctx context.Context, owner string, books []entity.WordBook) entity.PhaseResult {
	var res entity.PhaseResult
	log := e.logger.WithField("phase", "word_books")
	if len(books) == 0 {
		return res
	}

	valid := make([]entity.WordBook, 0, len(books))
	for _, b := range books {
		if err := b.Validate(); err != nil {
			log.WithField("book", b.ID).Warn("skipping word book without id or name")
			res.Skipped++
			continue
		}
		valid = append(valid, b)
	}

	matched := make(map[string]repository.RemoteBook, len(valid))

	remembered := lo.Uniq(lo.FilterMap(valid, func(b entity.WordBook, _ int) (string, bool) {
		return b.RemoteID, b.RemoteID != ""
	}))
	if len(remembered) > 0 {
		rows, err := e.remote.SelectBooksByID(ctx, owner, remembered)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("word books: select by id: %v", err))
			return res
		}
		byID := lo.KeyBy(rows, func(r repository.RemoteBook) string { return r.ID })
		for _, b := range valid {
			if row, ok := byID[b.RemoteID]; ok && b.RemoteID != "" {
				matched[b.ID] = row
			}
		}
	}

	names := lo.Uniq(lo.FilterMap(valid, func(b entity.WordBook, _ int) (string, bool) {
		_, done := matched[b.ID]
		return b.Name, !done
	}))
	if len(names) > 0 {
		rows, err := e.remote.SelectBooksByName(ctx, owner, names)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("word books: select by name: %v", err))
			return res
		}
		// Duplicate names resolve to the first row returned.
		byName := make(map[string]repository.RemoteBook, len(rows))
		for _, r := range rows {
			if _, dup := byName[r.Name]; !dup {
				byName[r.Name] = r
			}
		}
		for _, b := range valid {
			if _, done := matched[b.ID]; done {
				continue
			}
			if row, ok := byName[b.Name]; ok {
				matched[b.ID] = row
			}
		}
	}

	for localID, row := range matched {
		e.ids.SetBookMapping(localID, row.ID)
	}

	var toInsert, toUpdate []entity.WordBook
	for _, b := range valid {
		if _, ok := matched[b.ID]; ok {
			toUpdate = append(toUpdate, b)
		} else {
			toInsert = append(toInsert, b)
		}
	}

	if len(toInsert) > 0 {
		res.Merge(e.insertWordBooks(ctx, owner, toInsert))
	}

	for _, b := range toUpdate {
		row := matched[b.ID]
		fields := repository.BookFields{Name: b.Name, TargetLanguage: b.TargetLanguage}
		if err := e.remote.UpdateBook(ctx, owner, row.ID, fields); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("word book %q: update: %v", b.Name, err))
			continue
		}
		res.Count++
		res.Updated++
	}

	e.rememberBookRemoteIDs(ctx, valid, log)

	log.WithFields(logrus.Fields{
		"count":    res.Count,
		"inserted": res.Inserted,
		"updated":  res.Updated,
		"errors":   len(res.Errors),
	}).Debug("phase finished")
	return res
}

// insertWordBooks inserts one row per distinct name and maps every local book
// carrying that name to it.
func (e *Engine) insertWordBooks(ctx context.Context, owner string, books []entity.WordBook) entity.PhaseResult {
	var res entity.PhaseResult
	byName := lo.GroupBy(books, func(b entity.WordBook) string { return b.Name })
	rows := make([]repository.BookRow, 0, len(byName))
	for _, b := range lo.UniqBy(books, func(b entity.WordBook) string { return b.Name }) {
		rows = append(rows, repository.BookRow{
			Name:           b.Name,
			TargetLanguage: b.TargetLanguage,
			CreatedAt:      b.CreatedAt,
		})
	}

	inserted, err := e.remote.BatchInsertBooks(ctx, owner, rows)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("word books: insert %d new books: %v", len(rows), err))
		return res
	}

	for _, row := range inserted {
		locals, ok := byName[row.Name]
		if !ok {
			continue
		}
		for _, b := range locals {
			e.ids.SetBookMapping(b.ID, row.ID)
			res.Count++
			res.Inserted++
		}
		delete(byName, row.Name)
	}
	for name := range byName {
		res.Errors = append(res.Errors, fmt.Sprintf("word book %q: insert returned no id", name))
	}
	return res
}

// rememberBookRemoteIDs writes newly resolved remote IDs back to the local store.
// Failing to do so only costs the rename tracking of the next run.
func (e *Engine) rememberBookRemoteIDs(ctx context.Context, books []entity.WordBook, log logrus.FieldLogger) {
	changed := make(map[string]string)
	for _, b := range books {
		remoteID, ok := e.ids.GetBookRemoteID(b.ID)
		if ok && remoteID != b.RemoteID {
			changed[b.ID] = remoteID
		}
	}
	if len(changed) == 0 {
		return
	}
	if err := e.local.SaveBookRemoteIDs(ctx, changed); err != nil {
		log.WithError(err).Warn("could not record remote word book ids locally")
	}
}
