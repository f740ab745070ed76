package repository

import "errors"

// ErrNotFound is returned when a requested record does not exist in the
// backing store. Dangling index entries resolve to this as well.
var ErrNotFound = errors.New("record not found")
