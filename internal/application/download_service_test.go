package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/umdl/umd-host/internal/history"
	"github.com/umdl/umd-host/internal/media"
	"github.com/umdl/umd-host/internal/port/driven"
)

// mockDownloadSink is a mock implementation of driven.DownloadSink for testing.
type mockDownloadSink struct {
	mu         sync.Mutex
	submitFunc func(ctx context.Context, req driven.SinkRequest) (string, <-chan driven.Completion, error)

	requests []driven.SinkRequest
}

func (m *mockDownloadSink) Submit(ctx context.Context, req driven.SinkRequest) (string, <-chan driven.Completion, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return "sub-1", resolvedCompletion(nil), nil
}

func (m *mockDownloadSink) submitted() []driven.SinkRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driven.SinkRequest(nil), m.requests...)
}

// resolvedCompletion builds an already-resolved completion channel.
func resolvedCompletion(err error) <-chan driven.Completion {
	done := make(chan driven.Completion, 1)
	done <- driven.Completion{Err: err}
	close(done)
	return done
}

// mockHistoryRepository is a mock implementation of driven.HistoryRepository for testing.
type mockHistoryRepository struct {
	mu       sync.Mutex
	saveFunc func(ctx context.Context, rec history.Record) error

	saved []history.Record
}

func (m *mockHistoryRepository) Save(ctx context.Context, rec history.Record) error {
	m.mu.Lock()
	m.saved = append(m.saved, rec)
	m.mu.Unlock()
	if m.saveFunc != nil {
		return m.saveFunc(ctx, rec)
	}
	return nil
}

func (m *mockHistoryRepository) FindRecent(ctx context.Context, limit int) ([]history.Record, error) {
	return nil, nil
}

func (m *mockHistoryRepository) Ping(ctx context.Context) error { return nil }

func (m *mockHistoryRepository) records() []history.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Record(nil), m.saved...)
}

type downloadFixture struct {
	registry *RegistryService
	fetcher  *mockMediaFetcher
	sink     *mockDownloadSink
	history  *mockHistoryRepository
	service  *DownloadService
}

func newDownloadFixture(fetcher *mockMediaFetcher, concurrency int) *downloadFixture {
	registry := NewRegistryService(fetcher, slog.Default(), time.Second)
	sink := &mockDownloadSink{}
	historyRepo := &mockHistoryRepository{}
	return &downloadFixture{
		registry: registry,
		fetcher:  fetcher,
		sink:     sink,
		history:  historyRepo,
		service:  NewDownloadService(registry, fetcher, sink, historyRepo, slog.Default(), concurrency),
	}
}

// insert registers a URL and drains the probe so tests see stable
// fetcher call counts.
func (f *downloadFixture) insert(t *testing.T, url string) string {
	t.Helper()
	if !f.registry.Insert(url, "", "tab-1", media.ChannelNetwork) {
		t.Fatalf("insert of %s failed", url)
	}
	f.registry.Close()
	list := f.registry.List()
	return list[len(list)-1].ID
}

func TestDownloadServiceDirect(t *testing.T) {
	t.Run("hands the source URL to the sink and completes", func(t *testing.T) {
		fetcher := &mockMediaFetcher{
			headFunc: func(ctx context.Context, url string) (driven.HeadResult, error) {
				return driven.HeadResult{ContentLength: 100}, nil
			},
		}
		f := newDownloadFixture(fetcher, 0)
		id := f.insert(t, "https://cdn.example.com/movies/clip.mp4")

		if err := f.service.Download(context.Background(), id, DownloadOptions{}); err != nil {
			t.Fatalf("Download: %v", err)
		}

		snap, _ := f.registry.Get(id)
		if snap.Status != media.StatusCompleted {
			t.Errorf("got status %s", snap.Status)
		}

		reqs := f.sink.submitted()
		if len(reqs) != 1 {
			t.Fatalf("expected 1 sink submission, got %d", len(reqs))
		}
		if reqs[0].SourceURL != "https://cdn.example.com/movies/clip.mp4" {
			t.Errorf("sink got SourceURL %q", reqs[0].SourceURL)
		}
		if reqs[0].Filename != "clip.mp4" {
			t.Errorf("sink got filename %q", reqs[0].Filename)
		}

		recs := f.history.records()
		if len(recs) != 1 || !recs[0].Completed() {
			t.Errorf("expected one completed history record, got %+v", recs)
		}
	})

	t.Run("falls back to a byte payload when the sink rejects URLs", func(t *testing.T) {
		body := []byte("mp4 bytes")
		fetcher := &mockMediaFetcher{
			headFunc: func(ctx context.Context, url string) (driven.HeadResult, error) {
				return driven.HeadResult{ContentLength: int64(len(body))}, nil
			},
			fetchFunc: func(ctx context.Context, url string) ([]byte, string, error) {
				return body, "video/mp4", nil
			},
		}
		f := newDownloadFixture(fetcher, 0)
		f.sink.submitFunc = func(ctx context.Context, req driven.SinkRequest) (string, <-chan driven.Completion, error) {
			if req.SourceURL != "" {
				return "", nil, driven.ErrURLSubmissionUnsupported
			}
			return "sub-1", resolvedCompletion(nil), nil
		}
		id := f.insert(t, "https://cdn.example.com/movies/clip.mp4")

		if err := f.service.Download(context.Background(), id, DownloadOptions{}); err != nil {
			t.Fatalf("Download: %v", err)
		}

		reqs := f.sink.submitted()
		if len(reqs) != 2 {
			t.Fatalf("expected URL attempt then data fallback, got %d submissions", len(reqs))
		}
		if string(reqs[1].Data) != string(body) {
			t.Errorf("fallback payload mismatch: %q", reqs[1].Data)
		}

		snap, _ := f.registry.Get(id)
		if snap.Status != media.StatusCompleted {
			t.Errorf("got status %s", snap.Status)
		}
	})

	t.Run("records the failure when the resource cannot be fetched", func(t *testing.T) {
		fetcher := &mockMediaFetcher{
			headFunc: func(ctx context.Context, url string) (driven.HeadResult, error) {
				return driven.HeadResult{}, errors.New("unreachable")
			},
			fetchFunc: func(ctx context.Context, url string) ([]byte, string, error) {
				return nil, "", errors.New("403 Forbidden")
			},
		}
		f := newDownloadFixture(fetcher, 0)
		f.sink.submitFunc = func(ctx context.Context, req driven.SinkRequest) (string, <-chan driven.Completion, error) {
			return "", nil, driven.ErrURLSubmissionUnsupported
		}
		id := f.insert(t, "https://cdn.example.com/movies/clip.mp4")

		err := f.service.Download(context.Background(), id, DownloadOptions{})
		if err == nil {
			t.Fatal("expected download to fail")
		}

		snap, _ := f.registry.Get(id)
		if snap.Status != media.StatusFailed {
			t.Errorf("got status %s", snap.Status)
		}
		if !strings.Contains(snap.ErrorMessage, "403 Forbidden") {
			t.Errorf("cause missing from error message: %q", snap.ErrorMessage)
		}

		recs := f.history.records()
		if len(recs) != 1 || recs[0].Completed() {
			t.Errorf("expected one failed history record, got %+v", recs)
		}
	})

	t.Run("uses the caller's filename override", func(t *testing.T) {
		fetcher := &mockMediaFetcher{
			headFunc: func(ctx context.Context, url string) (driven.HeadResult, error) {
				return driven.HeadResult{ContentLength: 1}, nil
			},
		}
		f := newDownloadFixture(fetcher, 0)
		id := f.insert(t, "https://cdn.example.com/movies/clip.mp4")

		if err := f.service.Download(context.Background(), id, DownloadOptions{Filename: "saved.mkv"}); err != nil {
			t.Fatalf("Download: %v", err)
		}
		if got := f.sink.submitted()[0].Filename; got != "saved.mkv" {
			t.Errorf("sink got filename %q", got)
		}
	})

	t.Run("re-tags the kind from the HEAD content type", func(t *testing.T) {
		fetcher := &mockMediaFetcher{
			headFunc: func(ctx context.Context, url string) (driven.HeadResult, error) {
				return driven.HeadResult{ContentLength: 1, ContentType: "audio/mpeg"}, nil
			},
		}
		f := newDownloadFixture(fetcher, 0)
		id := f.insert(t, "https://cdn.example.com/videoplayback?id=9")

		if err := f.service.Download(context.Background(), id, DownloadOptions{}); err != nil {
			t.Fatalf("Download: %v", err)
		}

		snap, _ := f.registry.Get(id)
		if snap.Kind != media.KindAudio {
			t.Errorf("got kind %s, want %s", snap.Kind, media.KindAudio)
		}
	})

	t.Run("rejects a download of an unknown resource", func(t *testing.T) {
		f := newDownloadFixture(&mockMediaFetcher{}, 0)
		err := f.service.Download(context.Background(), "no-such-id", DownloadOptions{})
		if !errors.Is(err, media.ErrResourceNotFound) {
			t.Errorf("expected ErrResourceNotFound, got %v", err)
		}
	})
}

// manifestFetcher serves a playlist and its segments from a canned map.
func manifestFetcher(pages map[string]string) *mockMediaFetcher {
	return &mockMediaFetcher{
		headFunc: func(ctx context.Context, url string) (driven.HeadResult, error) {
			return driven.HeadResult{}, errors.New("not supported")
		},
		fetchFunc: func(ctx context.Context, url string) ([]byte, string, error) {
			page, ok := pages[url]
			if !ok {
				return nil, "", fmt.Errorf("unexpected fetch of %s", url)
			}
			return []byte(page), "", nil
		},
	}
}

func TestDownloadServiceManifest(t *testing.T) {
	const manifestURL = "https://cdn.example.com/stream/index.m3u8"

	t.Run("saves every segment under an indexed name", func(t *testing.T) {
		f := newDownloadFixture(manifestFetcher(map[string]string{
			manifestURL: "#EXTM3U\nseg0.ts\nseg1.ts\nseg2.ts",
			"https://cdn.example.com/stream/seg0.ts": "zero",
			"https://cdn.example.com/stream/seg1.ts": "one",
			"https://cdn.example.com/stream/seg2.ts": "two",
		}), 0)
		id := f.insert(t, manifestURL)

		if err := f.service.Download(context.Background(), id, DownloadOptions{}); err != nil {
			t.Fatalf("Download: %v", err)
		}

		reqs := f.sink.submitted()
		if len(reqs) != 3 {
			t.Fatalf("expected 3 segment submissions, got %d", len(reqs))
		}
		wantNames := []string{"index_segment_0000.ts", "index_segment_0001.ts", "index_segment_0002.ts"}
		wantData := []string{"zero", "one", "two"}
		for i, req := range reqs {
			if req.Filename != wantNames[i] {
				t.Errorf("submission %d named %q, want %q", i, req.Filename, wantNames[i])
			}
			if string(req.Data) != wantData[i] {
				t.Errorf("submission %d carries %q, want %q", i, req.Data, wantData[i])
			}
		}

		snap, _ := f.registry.Get(id)
		if snap.Status != media.StatusCompleted {
			t.Errorf("got status %s", snap.Status)
		}
	})

	t.Run("caps parallel segment fetches at the configured concurrency", func(t *testing.T) {
		pages := map[string]string{}
		var lines []string
		for i := 0; i < 10; i++ {
			pages[fmt.Sprintf("https://cdn.example.com/stream/seg%d.ts", i)] = "data"
			lines = append(lines, fmt.Sprintf("seg%d.ts", i))
		}
		pages[manifestURL] = strings.Join(lines, "\n")

		var (
			mu      sync.Mutex
			current int
			peak    int
		)
		base := manifestFetcher(pages)
		inner := base.fetchFunc
		base.fetchFunc = func(ctx context.Context, url string) ([]byte, string, error) {
			if url != manifestURL {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				current--
				mu.Unlock()
			}
			return inner(ctx, url)
		}

		f := newDownloadFixture(base, 0)
		id := f.insert(t, manifestURL)

		if err := f.service.Download(context.Background(), id, DownloadOptions{Concurrency: 3}); err != nil {
			t.Fatalf("Download: %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if peak > 3 {
			t.Errorf("peak concurrency %d exceeds cap 3", peak)
		}
		if len(f.sink.submitted()) != 10 {
			t.Errorf("expected 10 submissions, got %d", len(f.sink.submitted()))
		}
	})

	t.Run("drops a failed segment and still completes", func(t *testing.T) {
		fetcher := manifestFetcher(map[string]string{
			manifestURL: "#EXTM3U\nseg0.ts\nseg1.ts\nseg2.ts",
			"https://cdn.example.com/stream/seg0.ts": "zero",
			"https://cdn.example.com/stream/seg2.ts": "two",
		})
		f := newDownloadFixture(fetcher, 0)
		id := f.insert(t, manifestURL)

		if err := f.service.Download(context.Background(), id, DownloadOptions{}); err != nil {
			t.Fatalf("Download: %v", err)
		}

		reqs := f.sink.submitted()
		if len(reqs) != 2 {
			t.Fatalf("expected 2 surviving segments, got %d", len(reqs))
		}
		if reqs[0].Filename != "index_segment_0000.ts" || reqs[1].Filename != "index_segment_0002.ts" {
			t.Errorf("surviving names keep their manifest indices: %s, %s", reqs[0].Filename, reqs[1].Filename)
		}
	})

	t.Run("fails when every segment fetch fails", func(t *testing.T) {
		f := newDownloadFixture(manifestFetcher(map[string]string{
			manifestURL: "#EXTM3U\nseg0.ts\nseg1.ts",
		}), 0)
		id := f.insert(t, manifestURL)

		err := f.service.Download(context.Background(), id, DownloadOptions{})
		if err == nil {
			t.Fatal("expected download to fail")
		}

		snap, _ := f.registry.Get(id)
		if snap.Status != media.StatusFailed {
			t.Errorf("got status %s", snap.Status)
		}
	})

	t.Run("fails on a playlist with no segments", func(t *testing.T) {
		f := newDownloadFixture(manifestFetcher(map[string]string{
			manifestURL: "#EXTM3U\n#EXT-X-ENDLIST",
		}), 0)
		id := f.insert(t, manifestURL)

		if err := f.service.Download(context.Background(), id, DownloadOptions{}); err == nil {
			t.Fatal("expected download to fail")
		}
	})

	t.Run("resolves a master playlist through its first variant", func(t *testing.T) {
		const masterURL = "https://cdn.example.com/stream/master.m3u8"
		f := newDownloadFixture(manifestFetcher(map[string]string{
			masterURL: "#EXTM3U\nlow/index.m3u8\nhigh/index.m3u8",
			"https://cdn.example.com/stream/low/index.m3u8": "#EXTM3U\nseg0.ts",
			"https://cdn.example.com/stream/low/seg0.ts":    "low data",
		}), 0)
		id := f.insert(t, masterURL)

		if err := f.service.Download(context.Background(), id, DownloadOptions{}); err != nil {
			t.Fatalf("Download: %v", err)
		}

		reqs := f.sink.submitted()
		if len(reqs) != 1 || string(reqs[0].Data) != "low data" {
			t.Errorf("expected the first variant's segment, got %+v", reqs)
		}
	})

	t.Run("rejects nested master playlists", func(t *testing.T) {
		const masterURL = "https://cdn.example.com/stream/master.m3u8"
		f := newDownloadFixture(manifestFetcher(map[string]string{
			masterURL: "#EXTM3U\nouter/index.m3u8",
			"https://cdn.example.com/stream/outer/index.m3u8": "#EXTM3U\ninner/index.m3u8",
		}), 0)
		id := f.insert(t, masterURL)

		if err := f.service.Download(context.Background(), id, DownloadOptions{}); err == nil {
			t.Fatal("expected nested master to fail")
		}
	})
}
