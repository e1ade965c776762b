package syncer

import (
	"context"
	"time"
)

type periodicTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartPeriodicSync arms a timer that calls SyncToRemote every interval.
// An already armed timer is replaced. Tick failures are logged and never stop
// the timer.
func (e *Engine) StartPeriodicSync(interval time.Duration) {
	if interval <= 0 {
		e.logger.WithField("interval", interval).Warn("periodic sync not started: interval must be positive")
		return
	}

	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	e.stopTimerLocked()

	ctx, cancel := context.WithCancel(context.Background())
	t := &periodicTimer{cancel: cancel, done: make(chan struct{})}
	e.timer = t
	go e.runPeriodic(ctx, interval, t.done)
	e.logger.WithField("interval", interval.String()).Info("periodic sync started")
}

// StopPeriodicSync cancels the timer. It is a no-op when no timer is armed.
func (e *Engine) StopPeriodicSync() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.stopTimerLocked() {
		e.logger.Info("periodic sync stopped")
	}
}

func (e *Engine) stopTimerLocked() bool {
	if e.timer == nil {
		return false
	}
	e.timer.cancel()
	<-e.timer.done
	e.timer = nil
	return true
}

func (e *Engine) runPeriodic(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.periodicTick(ctx)
		}
	}
}

func (e *Engine) periodicTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("periodic sync tick failed")
		}
	}()
	result := e.SyncToRemote(ctx)
	if !result.Success {
		e.logger.WithField("errors", result.Errors).Error("periodic sync finished with errors")
	}
}
