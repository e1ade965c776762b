package entity

import "time"

// HistoryEntry records one practice attempt. Entries are append-only.
type HistoryEntry struct {
	ID            string    `json:"id"`
	WordCardID    string    `json:"wordCardId"`
	PracticeType  string    `json:"practiceType"`
	Tense         string    `json:"tense"`
	Mood          string    `json:"mood"`
	Person        string    `json:"person"`
	CorrectAnswer string    `json:"correctAnswer"`
	UserAnswer    string    `json:"userAnswer"`
	IsCorrect     bool      `json:"isCorrect"`
	CreatedAt     time.Time `json:"createdAt"`
}
