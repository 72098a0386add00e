package driven

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	port "github.com/umdl/umd-host/internal/port/driven"
)

// FileDownloadSink persists submitted payloads under a downloads
// directory. It implements the driven.DownloadSink port. URL
// submissions are retrieved by the sink's own HTTP client.
//
// Each submission's completion channel is resolved exactly once and
// then closed.
type FileDownloadSink struct {
	dir    string
	client *http.Client
	logger *slog.Logger
}

// NewFileDownloadSink creates a sink writing into dir, creating it if
// needed. If client is nil, a default client with a 60-second timeout
// is used.
func NewFileDownloadSink(dir string, client *http.Client, logger *slog.Logger) (*FileDownloadSink, error) {
	if dir == "" {
		return nil, errors.New("downloads directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating downloads directory: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &FileDownloadSink{dir: dir, client: client, logger: logger}, nil
}

// Submit accepts one file for persistence and returns the submission ID
// and its one-shot completion channel. The write happens asynchronously.
func (s *FileDownloadSink) Submit(ctx context.Context, req port.SinkRequest) (string, <-chan port.Completion, error) {
	name := filepath.Base(strings.TrimSpace(req.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", nil, errors.New("submission filename cannot be empty")
	}
	if req.Data == nil && req.SourceURL == "" {
		return "", nil, errors.New("submission carries neither data nor source URL")
	}

	id := uuid.NewString()
	done := make(chan port.Completion, 1)

	go func() {
		defer close(done)
		err := s.write(ctx, name, req)
		if err != nil {
			s.logger.Warn("sink write failed", "submission", id, "filename", name, "error", err)
		} else {
			s.logger.Debug("sink write finished", "submission", id, "filename", name)
		}
		done <- port.Completion{Err: err}
	}()

	return id, done, nil
}

func (s *FileDownloadSink) write(ctx context.Context, name string, req port.SinkRequest) error {
	data := req.Data
	if data == nil {
		body, err := s.retrieve(ctx, req.SourceURL)
		if err != nil {
			return err
		}
		data = body
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (s *FileDownloadSink) retrieve(ctx context.Context, rawURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("retrieving %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected HTTP status: %d %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
