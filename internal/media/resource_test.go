package media

import (
	"errors"
	"testing"
	"time"
)

func TestNewResource(t *testing.T) {
	now := time.Now()

	t.Run("rejects an empty URL", func(t *testing.T) {
		_, err := NewResource("  ", "tab-1", ChannelNetwork, KindVideo, now)
		if !errors.Is(err, ErrEmptyURL) {
			t.Errorf("expected ErrEmptyURL, got %v", err)
		}
	})

	t.Run("defaults a missing source context", func(t *testing.T) {
		r, err := NewResource("https://example.com/clip.mp4", "", ChannelDOM, KindVideo, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.SourceContext() != SourceUnknown {
			t.Errorf("got source context %q, want %q", r.SourceContext(), SourceUnknown)
		}
	})

	t.Run("starts detected with unresolved size", func(t *testing.T) {
		r, err := NewResource("https://example.com/clip.mp4", "tab-1", ChannelNetwork, KindVideo, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Status() != StatusDetected {
			t.Errorf("got status %s, want %s", r.Status(), StatusDetected)
		}
		if r.Size().Known() || r.Size().Streaming() {
			t.Errorf("expected unresolved size, got %s", r.Size())
		}
	})

	t.Run("marks adaptive resources as streaming size", func(t *testing.T) {
		r, err := NewResource("https://example.com/master.m3u8", "tab-1", ChannelNetwork, KindHLS, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !r.Size().Streaming() {
			t.Errorf("expected streaming size marker, got %s", r.Size())
		}
	})

	t.Run("generates distinct IDs for simultaneous detections", func(t *testing.T) {
		a, _ := NewResource("https://example.com/a.mp4", "tab-1", ChannelNetwork, KindVideo, now)
		b, _ := NewResource("https://example.com/b.mp4", "tab-1", ChannelNetwork, KindVideo, now)
		if a.ID() == b.ID() {
			t.Errorf("IDs collided: %s", a.ID())
		}
	})
}

func TestResourceLifecycle(t *testing.T) {
	newDetected := func(t *testing.T) *Resource {
		t.Helper()
		r, err := NewResource("https://example.com/clip.mp4", "tab-1", ChannelNetwork, KindVideo, time.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return r
	}

	t.Run("follows detected through downloading to completed", func(t *testing.T) {
		r := newDetected(t)
		if err := r.BeginDownload(); err != nil {
			t.Fatalf("BeginDownload: %v", err)
		}
		if err := r.Complete(); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if r.Status() != StatusCompleted {
			t.Errorf("got status %s, want %s", r.Status(), StatusCompleted)
		}
	})

	t.Run("records the failure message", func(t *testing.T) {
		r := newDetected(t)
		_ = r.BeginDownload()
		if err := r.Fail("connection reset"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
		if r.Status() != StatusFailed {
			t.Errorf("got status %s, want %s", r.Status(), StatusFailed)
		}
		if r.ErrorMessage() != "connection reset" {
			t.Errorf("got error message %q", r.ErrorMessage())
		}
	})

	t.Run("rejects completing a resource that never started", func(t *testing.T) {
		r := newDetected(t)
		if err := r.Complete(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("rejects restarting a terminal resource", func(t *testing.T) {
		r := newDetected(t)
		_ = r.BeginDownload()
		_ = r.Complete()
		if err := r.BeginDownload(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("failure does not overwrite a completed status", func(t *testing.T) {
		r := newDetected(t)
		_ = r.BeginDownload()
		_ = r.Complete()
		if err := r.Fail("too late"); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if r.ErrorMessage() != "" {
			t.Errorf("error message leaked onto completed resource: %q", r.ErrorMessage())
		}
	})
}

func TestResourceResolveSize(t *testing.T) {
	t.Run("records the probed byte count", func(t *testing.T) {
		r, _ := NewResource("https://example.com/clip.mp4", "tab-1", ChannelNetwork, KindVideo, time.Now())
		r.ResolveSize(2048)
		if !r.Size().Known() || r.Size().Bytes() != 2048 {
			t.Errorf("got size %s, want 2048 bytes", r.Size())
		}
	})

	t.Run("never overwrites the streaming marker", func(t *testing.T) {
		r, _ := NewResource("https://example.com/master.m3u8", "tab-1", ChannelNetwork, KindHLS, time.Now())
		r.ResolveSize(2048)
		if !r.Size().Streaming() {
			t.Errorf("streaming marker was overwritten: %s", r.Size())
		}
	})
}

func TestResourceReclassify(t *testing.T) {
	r, _ := NewResource("https://example.com/stream", "tab-1", ChannelNetwork, KindFile, time.Now())

	r.Reclassify(KindAudio)
	if r.Kind() != KindAudio {
		t.Errorf("got kind %s, want %s", r.Kind(), KindAudio)
	}

	r.Reclassify("")
	if r.Kind() != KindAudio {
		t.Errorf("empty kind overwrote classification: %s", r.Kind())
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	r, _ := NewResource("https://example.com/clip.mp4", "tab-1", ChannelNetwork, KindVideo, time.Now())
	snap := r.Snapshot()

	_ = r.BeginDownload()

	if snap.Status != StatusDetected {
		t.Errorf("snapshot tracked later mutation: %s", snap.Status)
	}
	if r.Status() != StatusDownloading {
		t.Errorf("resource status = %s", r.Status())
	}
}
