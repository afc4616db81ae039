package store

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a uniqueness constraint would be violated
// (email already registered, member already added).
var ErrDuplicate = errors.New("store: duplicate")

// ErrVersionConflict is returned when a document update races another
// writer's version bump.
var ErrVersionConflict = errors.New("store: version conflict")
