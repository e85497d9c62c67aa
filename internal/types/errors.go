package types

import "errors"

// ErrNotFound is returned by repositories when a record does not exist or is not visible
// to the caller.
var ErrNotFound = errors.New("record not found")
