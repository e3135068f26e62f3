package models

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable    = errors.New("source unavailable")
	ErrInvalidResponseShape = errors.New("invalid response shape")
	ErrPersistenceMissing   = errors.New("persisted data missing")
	ErrNoData               = errors.New("no data")
	ErrModelNotTrained      = errors.New("model not trained")
	ErrInvalidExchange      = errors.New("invalid exchange")
)

// SourceError reports an exchange that produced no records after exhausting its retries.
type SourceError struct {
	Source   string
	Attempts int
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: unavailable after %d attempts: %v", e.Source, e.Attempts, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}
