package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoNextPage marks the expected end of pagination.
	ErrNoNextPage = errors.New("no next page")
	// ErrEmptyResult matches any *EmptyResultError via errors.Is.
	ErrEmptyResult = errors.New("empty result")
	// ErrEmptyQuery is returned when the search query is blank.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// CollectionError reports that a step of the automated collection could not be completed.
type CollectionError struct {
	Step string
	Err  error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection failed at %s: %v", e.Step, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// TimeoutError is returned when a readiness condition did not hold in time.
type TimeoutError struct {
	Condition string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v waiting for %s", e.After, e.Condition)
}

// CredentialError lists the social API credentials that are missing.
type CredentialError struct {
	Missing []string
}

func (e *CredentialError) Error() string {
	return "missing social API credentials: " + strings.Join(e.Missing, ", ")
}

// EmptyResultError reports that a source returned zero records.
type EmptyResultError struct {
	Source string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no results from %s for this query", e.Source)
}

func (e *EmptyResultError) Is(target error) bool { return target == ErrEmptyResult }
