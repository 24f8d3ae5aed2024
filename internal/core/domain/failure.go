package domain

import "errors"

// FailureReason classifies why an attempt or a whole chain failed.
type FailureReason string

const (
	ReasonTimeout      FailureReason = "timeout"
	ReasonLoadError    FailureReason = "load_error"
	ReasonExhausted    FailureReason = "exhausted"
	ReasonNoCandidates FailureReason = "no_candidates"
	ReasonCanceled     FailureReason = "canceled"
)

var (
	// ErrReentrantCall is returned when Acquire is called for an id that is
	// already attempting or terminal.
	ErrReentrantCall = errors.New("acquire already in progress or finished for id")

	// ErrEmptyID is returned when Acquire is called without an id.
	ErrEmptyID = errors.New("empty resource id")

	// ErrNoSource is returned when a request carries no usable URL.
	ErrNoSource = errors.New("no source url")
)
