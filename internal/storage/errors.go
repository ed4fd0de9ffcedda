package storage

import "errors"

// Typed failures of the ordered-hierarchy store and snapshot copier.
// Handlers map these to HTTP statuses with errors.Is; allocation precision
// errors never appear here because the store compacts and retries instead.
var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStructuralMismatch is returned when a sibling reference belongs
	// to a different parent than the one stated, or a cross-group move
	// targets a group in another template.
	ErrStructuralMismatch = errors.New("sibling belongs to a different parent")

	// ErrInvalidMove is returned for moves that would violate the tree
	// shape, e.g. positioning a node relative to itself.
	ErrInvalidMove = errors.New("invalid move")

	// ErrSourceNotFound is returned when a snapshot's source template
	// vanishes mid-copy. No partial session is left behind.
	ErrSourceNotFound = errors.New("snapshot source not found")

	// ErrSessionFinished is returned when logging a set against a session
	// that has been marked finished (read-only).
	ErrSessionFinished = errors.New("session already finished")
)
