package game

import "errors"

var (
	// ErrValidation marks a report whose payload or score is unusable. Nothing was stored.
	ErrValidation = errors.New("invalid score report")
	// ErrPersistence marks a failed ledger transaction. Nothing was stored; retrying is safe.
	ErrPersistence = errors.New("persist score")
	// ErrUpstreamMirror marks a failed remote score update. The ledger entry is kept.
	ErrUpstreamMirror = errors.New("mirror score upstream")
	// ErrUpstreamQuery marks a failed high score fetch after a successful mirror.
	ErrUpstreamQuery = errors.New("fetch high scores")

	// ErrScoreNotModified is returned by an Upstream when the remote score already had the
	// requested value. Submission treats it as success.
	ErrScoreNotModified = errors.New("score not modified")
)
