package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a RepositoryError.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindAlreadyExists
	KindDoesNotExist
	KindInvalidID
	KindLock
)

// RepositoryError is the uniform failure type returned by every repository
// implementation.
type RepositoryError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

var (
	ErrAlreadyExists = &RepositoryError{Kind: KindAlreadyExists}
	ErrDoesNotExist  = &RepositoryError{Kind: KindDoesNotExist}
	ErrInvalidID     = &RepositoryError{Kind: KindInvalidID}
	ErrLock          = &RepositoryError{Kind: KindLock}
	ErrGeneric       = &RepositoryError{Kind: KindGeneric}
)

func (e *RepositoryError) Error() string {
	switch e.Kind {
	case KindAlreadyExists:
		return "This entity already exists"
	case KindDoesNotExist:
		return "This entity does not exist"
	case KindInvalidID:
		return "The id format is not valid"
	case KindLock:
		return fmt.Sprintf("PoisonError: `%s`", e.Detail)
	default:
		if e.Err != nil {
			return fmt.Sprintf("Repository error: %v", e.Err)
		}
		return "Repository error"
	}
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// Is matches on kind so errors.Is(err, ErrDoesNotExist) works for any
// instance carrying that kind.
func (e *RepositoryError) Is(target error) bool {
	var t *RepositoryError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func AlreadyExists(cause error) error {
	return &RepositoryError{Kind: KindAlreadyExists, Err: cause}
}

func DoesNotExist(cause error) error {
	return &RepositoryError{Kind: KindDoesNotExist, Err: cause}
}

func InvalidID(cause error) error {
	return &RepositoryError{Kind: KindInvalidID, Err: cause}
}

func LockError(detail string) error {
	return &RepositoryError{Kind: KindLock, Detail: detail}
}

// Generic wraps an unrecognised storage failure. A cause that already is a
// RepositoryError is returned unchanged.
func Generic(cause error) error {
	var re *RepositoryError
	if errors.As(cause, &re) {
		return cause
	}
	return &RepositoryError{Kind: KindGeneric, Err: cause}
}
