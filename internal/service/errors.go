package service

import "errors"

var (
	ErrInstanceNotFound = errors.New("instance not found")
	ErrInstanceExists   = errors.New("instance already exists")
	ErrInstanceNotReady = errors.New("instance not ready")

	// ErrRecoveryFailed means the one-shot rebuild inside the operation
	// wrapper did not bring the session back; the caller has to reinitialize
	// manually.
	ErrRecoveryFailed = errors.New("session recovery failed, reinitialize manually")

	// ErrMaxReconnects marks an instance that burned through every automatic
	// reconnection attempt. Only destroy+create clears it.
	ErrMaxReconnects = errors.New("max reconnect attempts reached, instance requires re-creation")

	ErrInitializeTimeout = errors.New("initialization timed out")
)
