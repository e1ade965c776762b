package entity

import (
	"encoding/json"
	"strings"
	"time"
)

// LearningStatus is the per-book learning state of a word card.
type LearningStatus string

const (
	LearningStatusNotStarted LearningStatus = "not_started"
	LearningStatusLearned    LearningStatus = "learned"
	LearningStatusUncertain  LearningStatus = "uncertain"
	LearningStatusForgot     LearningStatus = "forgot"
)

// Valid reports whether s is one of the known statuses.
func (s LearningStatus) Valid() bool {
	switch s {
	case LearningStatusNotStarted, LearningStatusLearned, LearningStatusUncertain, LearningStatusForgot:
		return true
	default:
		return false
	}
}

// ParseLearningStatus maps a stored value to a LearningStatus, falling back to not_started.
func ParseLearningStatus(v string) LearningStatus {
	s := LearningStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return LearningStatusNotStarted
	}
	return s
}

// WordCard is one vocabulary entry as it appears inside a word book.
// AIGeneratedInfo is passed through untouched.
type WordCard struct {
	ID              string          `json:"id"`
	Word            string          `json:"word"`
	AIGeneratedInfo json.RawMessage `json:"aiGeneratedInfo,omitempty"`
	LearningStatus  LearningStatus  `json:"learningStatus"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (c *WordCard) Validate() error {
	if strings.TrimSpace(c.ID) == "" || NormalizeWordToken(c.Word) == "" {
		return ErrInvalidWordCard
	}
	return nil
}

// WordBook is a named collection of word cards.
// RemoteID is empty until the book has been resolved against the remote store.
type WordBook struct {
	ID             string     `json:"id"`
	RemoteID       string     `json:"remoteId,omitempty"`
	Name           string     `json:"name"`
	TargetLanguage Language   `json:"targetLanguage"`
	CreatedAt      time.Time  `json:"createdAt"`
	Words          []WordCard `json:"words"`
}

// Validate checks the fields required before a book can be persisted or synced.
func (b *WordBook) Validate() error {
	if strings.TrimSpace(b.ID) == "" || strings.TrimSpace(b.Name) == "" {
		return ErrInvalidWordBook
	}
	return nil
}

// FindWord returns the index of the card whose normalized text matches word, or -1.
func (b *WordBook) FindWord(word string) int {
	token := NormalizeWordToken(word)
	if token == "" {
		return -1
	}
	for i := range b.Words {
		if NormalizeWordToken(b.Words[i].Word) == token {
			return i
		}
	}
	return -1
}

// LocalData is the whole client-side dataset.
type LocalData struct {
	WordBooks []WordBook `json:"wordBooks"`
}

// CardCount returns the number of (book, card) rows across all books.
func (d *LocalData) CardCount() int {
	n := 0
	for i := range d.WordBooks {
		n += len(d.WordBooks[i].Words)
	}
	return n
}
