package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable is returned on network failures and non-success responses.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceParse is returned when a page no longer has the expected structure.
	ErrSourceParse = errors.New("unexpected page structure")
	// ErrUnsupportedSector is returned for a sector id missing from the keyword index.
	ErrUnsupportedSector = errors.New("unsupported sector")
	// ErrActorNotFound is returned when no record matches a queried name.
	ErrActorNotFound = errors.New("actor not found")
)

// SourceError carries the context of a failed source call.
type SourceError struct {
	Source string
	URL    string
	Status int
	Kind   error
	Err    error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Source, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Unavailable builds a SourceError of kind ErrSourceUnavailable.
func Unavailable(source, url string, status int, err error) error {
	return &SourceError{Source: source, URL: url, Status: status, Kind: ErrSourceUnavailable, Err: err}
}

// ParseFailure builds a SourceError of kind ErrSourceParse.
func ParseFailure(source, url, format string, a ...any) error {
	return &SourceError{Source: source, URL: url, Kind: ErrSourceParse, Err: fmt.Errorf(format, a...)}
}

// IsSourceFailure reports whether err should degrade a single source rather than abort a query.
func IsSourceFailure(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrSourceParse)
}
