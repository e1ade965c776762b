package syncer

import (
	"sync"
	"time"

	"github.com/eslsoft/vocsync/internal/entity"
)

// statusPublisher owns the SyncStatus record. Its IsSyncing flag doubles as
// the non-reentrant run lock.
type statusPublisher struct {
	mu     sync.RWMutex
	status entity.SyncStatus
}

// tryBegin marks a run as started and returns the pending-change count the run
// covers. ok is false when a run is already active.
func (p *statusPublisher) tryBegin() (pending int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.IsSyncing {
		return 0, false
	}
	p.status.IsSyncing = true
	p.status.Errors = nil
	return p.status.PendingChanges, true
}

// runOutcome describes how a finished run updates the status.
type runOutcome struct {
	errors       []string
	finishedAt   time.Time
	touchLastRun bool
	// covered is subtracted from PendingChanges; changes made while the
	// run was in flight stay pending.
	covered int
}

func (p *statusPublisher) finish(o runOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.IsSyncing = false
	p.status.Errors = append([]string(nil), o.errors...)
	if o.touchLastRun {
		p.status.LastSyncTime = o.finishedAt
	}
	if o.covered > 0 {
		p.status.PendingChanges -= o.covered
		if p.status.PendingChanges < 0 {
			p.status.PendingChanges = 0
		}
	}
}

func (p *statusPublisher) snapshot() entity.SyncStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.status
	s.Errors = append([]string(nil), p.status.Errors...)
	return s
}

func (p *statusPublisher) incrementPending() {
	p.mu.Lock()
	p.status.PendingChanges++
	p.mu.Unlock()
}

func (p *statusPublisher) clearErrors() {
	p.mu.Lock()
	p.status.Errors = nil
	p.mu.Unlock()
}
