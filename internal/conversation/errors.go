package conversation

import "errors"

var (
	// ErrSessionNotFound is returned when a session ID has no stored context.
	ErrSessionNotFound = errors.New("conversation: session not found")

	// ErrStaleCommit is returned by SessionStore.Commit when the context was
	// mutated (usually reset) after the committing worker loaded it. The
	// in-flight result must be discarded, never merged.
	ErrStaleCommit = errors.New("conversation: stale commit")
)
