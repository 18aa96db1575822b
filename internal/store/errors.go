package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a uniqueness constraint,
// e.g. a second daily update for the same user+module+day.
var ErrConflict = errors.New("conflict")

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// intArray adapts an int slice for use as an = ANY($n) parameter.
func intArray(ids []int) any {
	values := make([]int64, len(ids))
	for i, id := range ids {
		values[i] = int64(id)
	}
	return pq.Array(values)
}
