package entity

import "time"

// SyncedItems counts entities per phase.
type SyncedItems struct {
	WordBooks int `json:"wordBooks"`
	WordCards int `json:"wordCards"`
	Relations int `json:"relations"`
	History   int `json:"history"`
}

// Total sums all counters.
func (s SyncedItems) Total() int {
	return s.WordBooks + s.WordCards + s.Relations + s.History
}

// SyncResult is the outcome of one orchestrated run.
//
// SyncedItems counts every entity written (inserted, updated or upserted);
// Created counts only the rows that did not exist on the target before.
type SyncResult struct {
	Success     bool        `json:"success"`
	Errors      []string    `json:"errors"`
	SyncedItems SyncedItems `json:"syncedItems"`
	Created     SyncedItems `json:"created"`
	StartedAt   time.Time   `json:"startedAt"`
	FinishedAt  time.Time   `json:"finishedAt"`
}

// PhaseResult is what a single phase reports back to the orchestrator.
type PhaseResult struct {
	Count    int
	Inserted int
	Updated  int
	Skipped  int
	Errors   []string
}

// Merge folds other into r.
func (r *PhaseResult) Merge(other PhaseResult) {
	r.Count += other.Count
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

// SyncStatus is the snapshot exposed to the UI layer.
type SyncStatus struct {
	LastSyncTime   time.Time `json:"lastSyncTime"`
	IsSyncing      bool      `json:"isSyncing"`
	PendingChanges int       `json:"pendingChanges"`
	Errors         []string  `json:"errors"`
}
