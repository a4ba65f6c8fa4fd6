package store

import "fmt"

// fail logs a storage failure once and translates it into the repository
// taxonomy using kind.
func (db *DB) fail(op string, kind func(error) error, err error) error {
	db.log.Error().Err(err).Str("op", op).Msg("storage error")
	return kind(fmt.Errorf("%s: %w", op, err))
}
