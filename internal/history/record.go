// Package history holds the journal of terminal download outcomes.
// Unlike the volatile registry, the journal survives restarts; it
// records what happened and never feeds back into registry state.
package history

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrEmptyResourceID  = errors.New("history resource ID cannot be empty")
	ErrEmptyURL         = errors.New("history URL cannot be empty")
	ErrInvalidTimestamp = errors.New("history timestamp must not be zero")
)

// Record represents one finished download, successful or not.
// It is an immutable value object.
type Record struct {
	resourceID   string
	url          string
	filename     string
	completed    bool
	errorMessage string
	finishedAt   time.Time
}

// NewRecord creates a new download record with validation.
func NewRecord(resourceID, url, filename string, completed bool, errorMessage string, finishedAt time.Time) (Record, error) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return Record{}, ErrEmptyResourceID
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return Record{}, ErrEmptyURL
	}
	if finishedAt.IsZero() {
		return Record{}, ErrInvalidTimestamp
	}
	return Record{
		resourceID:   resourceID,
		url:          url,
		filename:     filename,
		completed:    completed,
		errorMessage: errorMessage,
		finishedAt:   finishedAt,
	}, nil
}

// ReconstructRecord rebuilds a Record from persisted state.
// Intended for repository adapters only; bypasses validation.
func ReconstructRecord(resourceID, url, filename string, completed bool, errorMessage string, finishedAt time.Time) Record {
	return Record{
		resourceID:   resourceID,
		url:          url,
		filename:     filename,
		completed:    completed,
		errorMessage: errorMessage,
		finishedAt:   finishedAt,
	}
}

func (r Record) ResourceID() string    { return r.resourceID }
func (r Record) URL() string           { return r.url }
func (r Record) Filename() string      { return r.filename }
func (r Record) Completed() bool       { return r.completed }
func (r Record) ErrorMessage() string  { return r.errorMessage }
func (r Record) FinishedAt() time.Time { return r.finishedAt }
