package library

import (
	"errors"

	"github.com/desertthunder/plexaa/internal/shared"
)

// Status is the outcome of a fetch.
type Status int

const (
	StatusOK Status = iota
	StatusAuthExpired
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAuthExpired:
		return "auth_expired"
	case StatusFailed:
		return "failed"
	default:
		return ""
	}
}

// FetchResult is what a fetch produces. Value is set only for StatusOK; Err only otherwise.
type FetchResult[T any] struct {
	Status Status
	Value  T
	Err    error
}

func OK[T any](v T) FetchResult[T] {
	return FetchResult[T]{Status: StatusOK, Value: v}
}

// Classify turns an error into a failed result, separating authorization expiry from everything else.
func Classify[T any](err error) FetchResult[T] {
	if errors.Is(err, shared.ErrAuthExpired) {
		return FetchResult[T]{Status: StatusAuthExpired, Err: err}
	}
	return FetchResult[T]{Status: StatusFailed, Err: err}
}

// From builds a result from a (value, error) pair.
func From[T any](v T, err error) FetchResult[T] {
	if err != nil {
		return Classify[T](err)
	}
	return OK(v)
}
