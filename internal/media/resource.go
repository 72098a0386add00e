package media

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceUnknown is the sentinel source context used when the originating
// browsing context could not be determined.
const SourceUnknown = "unknown"

// Resource represents one detected media candidate.
// All mutation goes through methods that enforce the status state
// machine; callers are expected to serialize access (the registry holds
// resources behind its own lock).
type Resource struct {
	id            string
	url           string
	sourceContext string
	channel       DetectionChannel
	kind          Kind
	size          Size
	status        Status
	errorMessage  string
	detectedAt    time.Time
}

// NewResource creates a detected Resource for an already-classified URL.
// The ID is composed from the source context, the detection timestamp
// and a random component, so concurrent detections never collide.
func NewResource(url, sourceContext string, channel DetectionChannel, kind Kind, detectedAt time.Time) (*Resource, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}
	if sourceContext == "" {
		sourceContext = SourceUnknown
	}

	r := &Resource{
		id:            fmt.Sprintf("%s_%d_%s", sourceContext, detectedAt.UnixMilli(), uuid.NewString()[:8]),
		url:           url,
		sourceContext: sourceContext,
		channel:       channel,
		kind:          kind,
		size:          SizeUnresolved(),
		status:        StatusDetected,
		detectedAt:    detectedAt,
	}
	if kind.IsAdaptive() {
		// Adaptive manifests are never size-probed.
		r.size = SizeStreaming()
	}
	return r, nil
}

func (r *Resource) ID() string                 { return r.id }
func (r *Resource) URL() string                { return r.url }
func (r *Resource) SourceContext() string      { return r.sourceContext }
func (r *Resource) Channel() DetectionChannel  { return r.channel }
func (r *Resource) Kind() Kind                 { return r.kind }
func (r *Resource) Size() Size                 { return r.size }
func (r *Resource) Status() Status             { return r.status }
func (r *Resource) ErrorMessage() string       { return r.errorMessage }
func (r *Resource) DetectedAt() time.Time      { return r.detectedAt }

// BeginDownload moves the resource into the downloading state.
// Returns ErrInvalidTransition unless the resource is freshly detected.
func (r *Resource) BeginDownload() error {
	return r.transition(StatusDownloading)
}

// Complete marks the download as finished successfully.
func (r *Resource) Complete() error {
	return r.transition(StatusCompleted)
}

// Fail marks the download as failed with a human-readable cause.
func (r *Resource) Fail(message string) error {
	if err := r.transition(StatusFailed); err != nil {
		return err
	}
	r.errorMessage = message
	return nil
}

func (r *Resource) transition(next Status) error {
	if !r.status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, r.status, next)
	}
	r.status = next
	return nil
}

// ResolveSize records the probed byte count. It is a no-op for adaptive
// resources, whose size is fixed to the streaming marker at creation.
func (r *Resource) ResolveSize(bytes int64) {
	if r.size.Streaming() {
		return
	}
	r.size = SizeOfBytes(bytes)
}

// Reclassify re-tags the resource kind from authoritative header data.
// It touches display metadata only; status, size and URL are unchanged.
func (r *Resource) Reclassify(kind Kind) {
	if kind == "" {
		return
	}
	r.kind = kind
}

// Snapshot is an immutable copy of a resource's state, safe to hand to
// callers outside the registry lock.
type Snapshot struct {
	ID            string
	URL           string
	SourceContext string
	Channel       DetectionChannel
	Kind          Kind
	Size          Size
	Status        Status
	ErrorMessage  string
	DetectedAt    time.Time
}

// Snapshot returns a copy of the resource's current state.
func (r *Resource) Snapshot() Snapshot {
	return Snapshot{
		ID:            r.id,
		URL:           r.url,
		SourceContext: r.sourceContext,
		Channel:       r.channel,
		Kind:          r.kind,
		Size:          r.size,
		Status:        r.status,
		ErrorMessage:  r.errorMessage,
		DetectedAt:    r.detectedAt,
	}
}
