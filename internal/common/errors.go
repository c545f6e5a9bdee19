// Package common defines shared constants and sentinel errors used across
// the agent and server layers of homeledger. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Sync readiness errors. Fail-fast: the engine never retries these itself.
	ErrOffline      = errors.New("offline")
	ErrUnauthorized = errors.New("unauthorized")

	// Concurrency-rejection results. Not failures in the usual sense: a second
	// concurrent fullSync, or a materializer run that cannot take its lock, is
	// a defined no-op.
	ErrSyncInProgress  = errors.New("sync already in progress")
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockTimeout     = errors.New("lock acquisition timed out")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
