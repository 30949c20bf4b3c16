package storage

import "errors"

// ErrNotFound matches every NotFoundError with errors.Is.
var ErrNotFound = errors.New("record not found")

// ErrNilRecord is returned when a nil record is stored.
var ErrNilRecord = errors.New("cannot store nil record")

// NotFoundError is returned when a record doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return ErrNotFound.Error()
	}
	return ErrNotFound.Error() + ": " + e.ID
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
