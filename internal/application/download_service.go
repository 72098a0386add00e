package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/umdl/umd-host/internal/filename"
	"github.com/umdl/umd-host/internal/history"
	"github.com/umdl/umd-host/internal/manifest"
	"github.com/umdl/umd-host/internal/media"
	"github.com/umdl/umd-host/internal/metrics"
	"github.com/umdl/umd-host/internal/port/driven"
)

// DefaultSegmentConcurrency bounds parallel segment fetches when the
// caller does not override it.
const DefaultSegmentConcurrency = 6

// DownloadOptions are caller overrides for a single download operation.
type DownloadOptions struct {
	Filename    string
	Concurrency int
}

// DownloadService orchestrates the retrieval of a detected resource:
// direct files are fetched whole, adaptive manifests are expanded into
// segments and fetched in bounded-concurrency batches. Terminal status
// is recorded on the registry entry and journaled to history.
//
// Retries are deliberately not implemented here; a failed resource
// stays listed and can be re-downloaded by the caller.
type DownloadService struct {
	registry           *RegistryService
	fetcher            driven.MediaFetcher
	sink               driven.DownloadSink
	history            driven.HistoryRepository
	logger             *slog.Logger
	defaultConcurrency int
}

// NewDownloadService creates a new DownloadService. A non-positive
// defaultConcurrency falls back to DefaultSegmentConcurrency.
func NewDownloadService(
	registry *RegistryService,
	fetcher driven.MediaFetcher,
	sink driven.DownloadSink,
	historyRepo driven.HistoryRepository,
	logger *slog.Logger,
	defaultConcurrency int,
) *DownloadService {
	if defaultConcurrency <= 0 {
		defaultConcurrency = DefaultSegmentConcurrency
	}
	return &DownloadService{
		registry:           registry,
		fetcher:            fetcher,
		sink:               sink,
		history:            historyRepo,
		logger:             logger,
		defaultConcurrency: defaultConcurrency,
	}
}

// Download runs a full download of the identified resource. The first
// observable effect is the transition to downloading; the operation
// always ends in completed or failed. The returned error mirrors the
// failure recorded on the resource.
func (s *DownloadService) Download(ctx context.Context, id string, opts DownloadOptions) error {
	snap, err := s.registry.BeginDownload(id)
	if err != nil {
		return err
	}

	name := filename.Derive(snap.URL, opts.Filename)
	s.logger.Info("download started", "id", id, "url", snap.URL, "filename", name, "kind", snap.Kind)

	// A HEAD-derived content type re-tags the kind before the main
	// transfer. This is display metadata only; the branch below
	// follows the kind the resource had when the download was decided.
	if head, err := s.fetcher.Head(ctx, snap.URL); err == nil {
		s.registry.Reclassify(id, head.ContentType)
	}

	if snap.Kind.IsAdaptive() {
		err = s.downloadManifest(ctx, snap, name, opts.Concurrency)
	} else {
		err = s.downloadDirect(ctx, snap, name)
	}

	if err != nil {
		s.registry.FailDownload(id, err.Error())
		metrics.Downloads.WithLabelValues(metrics.ResultFailed).Inc()
		s.recordOutcome(ctx, snap, name, false, err.Error())
		s.logger.Warn("download failed", "id", id, "url", snap.URL, "error", err)
		return err
	}

	s.registry.CompleteDownload(id)
	metrics.Downloads.WithLabelValues(metrics.ResultCompleted).Inc()
	s.recordOutcome(ctx, snap, name, true, "")
	s.logger.Info("download completed", "id", id, "filename", name)
	return nil
}

// downloadDirect hands the resource to the sink, preferring the sink's
// own URL retrieval and falling back to an in-memory payload when the
// sink rejects URL submissions.
func (s *DownloadService) downloadDirect(ctx context.Context, snap media.Snapshot, name string) error {
	subID, done, err := s.sink.Submit(ctx, driven.SinkRequest{Filename: name, SourceURL: snap.URL})
	if err != nil {
		body, _, fetchErr := s.fetcher.Fetch(ctx, snap.URL)
		if fetchErr != nil {
			return fmt.Errorf("fetching %s: %w", snap.URL, fetchErr)
		}
		subID, done, err = s.sink.Submit(ctx, driven.SinkRequest{Filename: name, Data: body})
		if err != nil {
			return fmt.Errorf("sink submission: %w", err)
		}
	}

	if err := s.awaitCompletion(ctx, done); err != nil {
		return fmt.Errorf("sink submission %s: %w", subID, err)
	}
	return nil
}

// downloadManifest expands an adaptive manifest into segments, fetches
// them in batches and persists each segment individually. Segments are
// not concatenated or transmuxed.
func (s *DownloadService) downloadManifest(ctx context.Context, snap media.Snapshot, name string, concurrency int) error {
	segments, err := s.resolveSegments(ctx, snap.URL)
	if err != nil {
		return err
	}

	if concurrency <= 0 {
		concurrency = s.defaultConcurrency
	}
	fetched := s.fetchSegments(ctx, segments, concurrency)
	if len(fetched) == 0 {
		return fmt.Errorf("all %d segments failed to download", len(segments))
	}

	// Batches complete in arbitrary relative order; the manifest order
	// is restored by the index sort.
	sort.Slice(fetched, func(i, j int) bool { return fetched[i].index < fetched[j].index })

	stem := filename.Stem(name)
	submitted := 0
	for _, seg := range fetched {
		segName := fmt.Sprintf("%s_segment_%04d.ts", stem, seg.index)
		_, done, err := s.sink.Submit(ctx, driven.SinkRequest{Filename: segName, Data: seg.data})
		if err == nil {
			err = s.awaitCompletion(ctx, done)
		}
		if err != nil {
			s.logger.Warn("segment submission failed", "filename", segName, "error", err)
			continue
		}
		submitted++
	}
	if submitted == 0 {
		return fmt.Errorf("sink rejected all %d segments", len(fetched))
	}

	s.logger.Info("segments saved",
		"url", snap.URL,
		"total", len(segments),
		"fetched", len(fetched),
		"saved", submitted,
	)
	return nil
}

// resolveSegments fetches and parses the manifest. A master manifest
// (one whose entries are all playlists) is resolved one level deep by
// following its first variant; deeper nesting is an error.
func (s *DownloadService) resolveSegments(ctx context.Context, manifestURL string) ([]manifest.Segment, error) {
	body, _, err := s.fetcher.Fetch(ctx, manifestURL)
	if err != nil {
		return nil, fmt.Errorf("fetching playlist: %w", err)
	}

	segments, err := manifest.Parse(string(body), manifestURL)
	if err != nil {
		return nil, err
	}

	if manifest.IsMaster(segments) {
		variantURL := segments[0].URL
		s.logger.Info("master playlist detected, following first variant", "variant", variantURL)

		vbody, _, err := s.fetcher.Fetch(ctx, variantURL)
		if err != nil {
			return nil, fmt.Errorf("fetching variant playlist: %w", err)
		}
		segments, err = manifest.Parse(string(vbody), variantURL)
		if err != nil {
			return nil, err
		}
		if manifest.IsMaster(segments) {
			return nil, fmt.Errorf("nested master playlist %s not supported", variantURL)
		}
	}

	return segments, nil
}

type fetchedSegment struct {
	index int
	data  []byte
}

// fetchSegments retrieves segments in fixed-size batches: each batch
// runs fully in parallel and must finish before the next one starts.
// A failed segment is dropped and logged, never aborting the operation.
func (s *DownloadService) fetchSegments(ctx context.Context, segments []manifest.Segment, concurrency int) []fetchedSegment {
	if concurrency > len(segments) {
		concurrency = len(segments)
	}

	var (
		mu      sync.Mutex
		fetched []fetchedSegment
	)
	for start := 0; start < len(segments); start += concurrency {
		end := start + concurrency
		if end > len(segments) {
			end = len(segments)
		}

		var wg sync.WaitGroup
		for _, seg := range segments[start:end] {
			wg.Add(1)
			go func(seg manifest.Segment) {
				defer wg.Done()
				data, _, err := s.fetcher.Fetch(ctx, seg.URL)
				if err != nil {
					s.logger.Warn("segment fetch failed", "index", seg.Index, "url", seg.URL, "error", err)
					metrics.SegmentFailures.Inc()
					return
				}
				mu.Lock()
				fetched = append(fetched, fetchedSegment{index: seg.Index, data: data})
				mu.Unlock()
			}(seg)
		}
		wg.Wait()
	}
	return fetched
}

// awaitCompletion blocks until the sink resolves the submission or the
// context is cancelled.
func (s *DownloadService) awaitCompletion(ctx context.Context, done <-chan driven.Completion) error {
	select {
	case comp := <-done:
		return comp.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recordOutcome journals a terminal download. Journal failures are
// logged and swallowed; the journal is an observability aid, not part
// of the download contract.
func (s *DownloadService) recordOutcome(ctx context.Context, snap media.Snapshot, name string, completed bool, message string) {
	rec, err := history.NewRecord(snap.ID, snap.URL, name, completed, message, time.Now())
	if err != nil {
		s.logger.Warn("history record invalid", "id", snap.ID, "error", err)
		return
	}
	if err := s.history.Save(ctx, rec); err != nil {
		s.logger.Warn("history save failed", "id", snap.ID, "error", err)
	}
}
