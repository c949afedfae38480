package storage

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when a create-if-absent write finds an existing record.
var ErrAlreadyExists = errors.New("record already exists")

// ErrConditionFailed is returned when a conditional status transition loses, e.g. because
// the reservation is no longer in the expected state.
var ErrConditionFailed = errors.New("conditional update failed")
