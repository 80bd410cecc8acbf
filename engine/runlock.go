package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Holder identifies which kind of run owns the lock.
type Holder string

const (
	HolderNone    Holder = ""
	HolderBackup  Holder = "backup"
	HolderRestore Holder = "restore"
)

const defaultStaleAfter = 24 * time.Hour

// RunLock is the process-wide mutual exclusion over the backup directory and
// the target database: at most one of backup or restore runs at any instant.
// Acquire fails fast instead of queueing. A holder stuck past the staleness
// window is broken so one abnormal termination cannot wedge the daemon.
type RunLock struct {
	mu         sync.Mutex
	holder     Holder
	acquiredAt time.Time
	staleAfter time.Duration
	logger     zerolog.Logger
}

func NewRunLock(logger zerolog.Logger) *RunLock {
	return &RunLock{staleAfter: defaultStaleAfter, logger: logger}
}

// Acquire takes the lock for h or fails immediately with ErrLockHeld.
func (l *RunLock) Acquire(h Holder) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder != HolderNone {
		held := time.Since(l.acquiredAt)
		if held <= l.staleAfter {
			return fmt.Errorf("%w: %s running since %s", ErrLockHeld, l.holder, l.acquiredAt.Format(time.RFC3339))
		}
		l.logger.Warn().
			Str("holder", string(l.holder)).
			Dur("held", held).
			Msg("breaking stale run lock")
	}

	l.holder = h
	l.acquiredAt = time.Now()
	return nil
}

// Release gives the lock back. Releasing a lock h does not hold is a bug in
// the caller and is logged rather than panicking the daemon.
func (l *RunLock) Release(h Holder) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder != h {
		l.logger.Error().
			Str("holder", string(l.holder)).
			Str("releasing", string(h)).
			Msg("run lock released by non-holder")
		return
	}
	l.holder = HolderNone
	l.acquiredAt = time.Time{}
}

// Holder reports the current owner, if any.
func (l *RunLock) Holder() Holder {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}
