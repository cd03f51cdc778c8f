package repositories

import "errors"

// ErrNotFound is returned when a requested row does not exist.
// Callers map it onto their own not-found conditions instead of
// matching pgx errors directly.
var ErrNotFound = errors.New("record not found")
