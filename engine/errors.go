package engine

import "errors"

var (
	// ErrLockHeld means a backup or restore is already running. Recoverable;
	// callers retry later instead of queueing.
	ErrLockHeld = errors.New("another run is in progress")

	// ErrNotFound means the restore selector matched no backup record.
	ErrNotFound = errors.New("backup not found")

	// ErrCorruptArtifact means the artifact failed checksum verification.
	// Restore aborts on it before any destructive step.
	ErrCorruptArtifact = errors.New("artifact checksum mismatch")

	// ErrConfirmationRequired means the restore confirmation token did not
	// match the resolved record.
	ErrConfirmationRequired = errors.New("restore requires a matching confirmation token")
)
