package driven

import (
	"context"
	"errors"
)

// ErrURLSubmissionUnsupported is returned by sinks that cannot retrieve
// a source URL themselves. Callers fall back to fetching the bytes and
// resubmitting them as a data payload.
var ErrURLSubmissionUnsupported = errors.New("sink does not support URL submissions")

// SinkRequest describes one file to hand to the download sink. Exactly
// one of Data and SourceURL is set: Data carries an in-memory payload,
// SourceURL asks the sink to retrieve the resource itself.
type SinkRequest struct {
	Filename  string
	Data      []byte
	SourceURL string
}

// Completion is the terminal outcome of a sink submission. Err is nil
// on success.
type Completion struct {
	Err error
}

// DownloadSink defines the interface for persisting downloaded media.
// This is a driven port implemented by concrete adapters (e.g. a
// downloads-directory writer).
//
// Submit returns a submission identifier and a channel on which the
// terminal outcome is delivered exactly once, after which the channel
// is closed.
type DownloadSink interface {
	Submit(ctx context.Context, req SinkRequest) (string, <-chan Completion, error)
}
