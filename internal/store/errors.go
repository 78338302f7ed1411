package store

import "errors"

// ErrNotFound is returned when a record does not exist or belongs to a
// different owner. Callers must not be able to tell the two cases apart.
var ErrNotFound = errors.New("not found")
