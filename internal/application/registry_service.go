package application

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/umdl/umd-host/internal/classify"
	"github.com/umdl/umd-host/internal/media"
	"github.com/umdl/umd-host/internal/metrics"
	"github.com/umdl/umd-host/internal/port/driven"
)

// RegistryService owns the in-memory collection of detected media
// resources. It is the single shared mutable state of the process:
// every mutation happens under its lock, which makes the
// check-then-insert of Insert atomic and keeps status transitions and
// size writes from interleaving.
//
// The registry is volatile. Nothing in it outlives the process.
type RegistryService struct {
	mu        sync.Mutex
	resources map[string]*media.Resource // by resource ID
	byURL     map[string]string          // URL → resource ID
	order     []string                   // resource IDs in insertion order

	fetcher      driven.MediaFetcher
	logger       *slog.Logger
	probeTimeout time.Duration

	probeWG sync.WaitGroup // in-flight size probes, drained on Close
}

// NewRegistryService creates an empty registry.
func NewRegistryService(fetcher driven.MediaFetcher, logger *slog.Logger, probeTimeout time.Duration) *RegistryService {
	return &RegistryService{
		resources:    make(map[string]*media.Resource),
		byURL:        make(map[string]string),
		order:        nil,
		fetcher:      fetcher,
		logger:       logger,
		probeTimeout: probeTimeout,
	}
}

// Insert classifies a candidate URL and stores it if it is new media.
// Relative URLs are resolved against documentURL first. It returns true
// only when a new resource was created; classification rejects and
// duplicates are normal control flow, not errors.
//
// Size probing runs asynchronously and never blocks or fails the insert.
func (s *RegistryService) Insert(rawURL, documentURL, sourceContext string, channel media.DetectionChannel) bool {
	absolute, ok := resolveCandidateURL(rawURL, documentURL)
	if !ok {
		metrics.MediaRejected.WithLabelValues(metrics.ReasonBadURL).Inc()
		return false
	}

	kind, ok := classifyFor(channel, absolute)
	if !ok {
		metrics.MediaRejected.WithLabelValues(metrics.ReasonNotMedia).Inc()
		return false
	}

	s.mu.Lock()
	if _, exists := s.byURL[absolute]; exists {
		s.mu.Unlock()
		s.logger.Debug("duplicate detection ignored", "url", absolute)
		metrics.MediaRejected.WithLabelValues(metrics.ReasonDuplicate).Inc()
		return false
	}

	res, err := media.NewResource(absolute, sourceContext, channel, kind, time.Now())
	if err != nil {
		s.mu.Unlock()
		metrics.MediaRejected.WithLabelValues(metrics.ReasonBadURL).Inc()
		return false
	}

	s.resources[res.ID()] = res
	s.byURL[absolute] = res.ID()
	s.order = append(s.order, res.ID())
	size := len(s.resources)
	s.mu.Unlock()

	s.logger.Info("media detected",
		"id", res.ID(),
		"url", absolute,
		"kind", kind,
		"channel", channel,
		"source", res.SourceContext(),
	)
	metrics.MediaDetected.WithLabelValues(string(channel)).Inc()
	metrics.RegistrySize.Set(float64(size))

	if !kind.IsAdaptive() {
		s.probeWG.Add(1)
		go func() {
			defer s.probeWG.Done()
			s.probeSize(res.ID(), absolute)
		}()
	}

	return true
}

// classifyFor picks the classifier variant for the detection channel:
// network detections get segment suppression, content scans stay
// permissive.
func classifyFor(channel media.DetectionChannel, absolute string) (media.Kind, bool) {
	if channel.IsNetworkLevel() {
		return classify.FromURL(absolute)
	}
	return classify.FromScan(absolute)
}

// resolveCandidateURL turns a candidate into an absolute URL, resolving
// relative references against the originating document.
func resolveCandidateURL(rawURL, documentURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if u.IsAbs() {
		return rawURL, true
	}
	if documentURL == "" {
		return "", false
	}
	doc, err := url.Parse(documentURL)
	if err != nil || !doc.IsAbs() {
		return "", false
	}
	return doc.ResolveReference(u).String(), true
}

// probeSize resolves the byte size of a resource: HEAD first, full GET
// as fallback. Failures are swallowed; the size simply stays
// unresolved. Completion for a resource that has been cleared in the
// meantime is a silent no-op.
func (s *RegistryService) probeSize(id, rawURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.probeTimeout)
	defer cancel()

	if head, err := s.fetcher.Head(ctx, rawURL); err == nil && head.ContentLength >= 0 {
		s.applyProbedSize(id, head.ContentLength)
		return
	}

	body, _, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.logger.Debug("size probe failed", "id", id, "url", rawURL, "error", err)
		metrics.ProbeFailures.Inc()
		return
	}
	s.applyProbedSize(id, int64(len(body)))
}

func (s *RegistryService) applyProbedSize(id string, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.resources[id]
	if !ok {
		return // cleared mid-probe
	}
	if res.Size().Known() {
		return
	}
	res.ResolveSize(bytes)
}

// ApplyResponseMetadata consumes headers observed for a completed
// request: the content length fills in an unresolved size and the
// content type, being authoritative, overrides the URL-derived kind.
// Unknown URLs are ignored.
func (s *RegistryService) ApplyResponseMetadata(rawURL string, contentLength int64, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byURL[rawURL]
	if !ok {
		return
	}
	res := s.resources[id]

	if contentLength >= 0 && !res.Size().Known() {
		res.ResolveSize(contentLength)
	}
	if kind, ok := classify.FromContentType(contentType); ok {
		res.Reclassify(kind)
	}
}

// Get returns a snapshot of one resource.
func (s *RegistryService) Get(id string) (media.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.resources[id]
	if !ok {
		return media.Snapshot{}, media.ErrResourceNotFound
	}
	return res.Snapshot(), nil
}

// List returns snapshots of all resources in insertion order.
func (s *RegistryService) List() []media.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]media.Snapshot, 0, len(s.order))
	for _, id := range s.order {
		if res, ok := s.resources[id]; ok {
			out = append(out, res.Snapshot())
		}
	}
	return out
}

// Count returns the number of resources currently held.
func (s *RegistryService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

// ClearAll empties the registry and returns the number of removed
// resources.
func (s *RegistryService) ClearAll() int {
	s.mu.Lock()
	count := len(s.resources)
	s.resources = make(map[string]*media.Resource)
	s.byURL = make(map[string]string)
	s.order = nil
	s.mu.Unlock()

	s.logger.Info("registry cleared", "removed", count)
	metrics.RegistrySize.Set(0)
	return count
}

// ClearBySourceContext removes all resources detected in the given
// browsing context, leaving others untouched. Used when a context
// navigates or closes, so stale cross-navigation entries don't linger.
func (s *RegistryService) ClearBySourceContext(sourceContext string) int {
	s.mu.Lock()
	removed := 0
	kept := s.order[:0]
	for _, id := range s.order {
		res := s.resources[id]
		if res.SourceContext() == sourceContext {
			delete(s.resources, id)
			delete(s.byURL, res.URL())
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	size := len(s.resources)
	s.mu.Unlock()

	s.logger.Info("source context cleared", "source", sourceContext, "removed", removed)
	metrics.RegistrySize.Set(float64(size))
	return removed
}

// BeginDownload transitions a resource into the downloading state and
// returns its snapshot for the download operation to work from.
func (s *RegistryService) BeginDownload(id string) (media.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.resources[id]
	if !ok {
		return media.Snapshot{}, media.ErrResourceNotFound
	}
	if err := res.BeginDownload(); err != nil {
		return media.Snapshot{}, err
	}
	return res.Snapshot(), nil
}

// CompleteDownload marks a resource's download as successful. A
// resource cleared mid-download is a silent no-op.
func (s *RegistryService) CompleteDownload(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.resources[id]; ok {
		if err := res.Complete(); err != nil {
			s.logger.Warn("completion dropped", "id", id, "error", err)
		}
	}
}

// FailDownload marks a resource's download as failed with a
// human-readable cause. A resource cleared mid-download is a silent
// no-op.
func (s *RegistryService) FailDownload(id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.resources[id]; ok {
		if err := res.Fail(message); err != nil {
			s.logger.Warn("failure dropped", "id", id, "error", err)
		}
	}
}

// Reclassify re-tags a resource from authoritative content-type data.
func (s *RegistryService) Reclassify(id string, contentType string) {
	kind, ok := classify.FromContentType(contentType)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.resources[id]; ok {
		res.Reclassify(kind)
	}
}

// Close waits for in-flight size probes to finish.
func (s *RegistryService) Close() {
	s.probeWG.Wait()
}
