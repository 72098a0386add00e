// Package manifest extracts segment URLs from adaptive-streaming
// playlists. It implements a deliberately minimal subset of the HLS and
// DASH playlist grammars: directive lines are skipped, every remaining
// line is a segment reference. Bitrate ladders, encryption keys and
// byte-range addressing are not interpreted.
package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrEmptyManifest is returned when a playlist contains no segment references.
var ErrEmptyManifest = errors.New("no segments found in playlist")

// Segment is one segment reference from a playlist. Index is the
// 0-based position of the reference within the manifest and defines the
// reassembly order of the downloaded stream.
type Segment struct {
	URL   string
	Index int
}

// Parse splits playlist text into ordered segment references.
// Comment lines (leading '#') and blank lines are skipped. Relative
// references are resolved against the directory of baseURL.
func Parse(text, baseURL string) ([]Segment, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	// Resolve against the base path up to and including the final '/'.
	dir := *base
	if i := strings.LastIndex(dir.Path, "/"); i >= 0 {
		dir.Path = dir.Path[:i+1]
	}
	dir.RawQuery = ""
	dir.Fragment = ""

	var segments []Segment
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		segURL := line
		if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
			ref, err := url.Parse(line)
			if err != nil {
				continue
			}
			segURL = dir.ResolveReference(ref).String()
		}

		segments = append(segments, Segment{URL: segURL, Index: len(segments)})
	}

	if len(segments) == 0 {
		return nil, ErrEmptyManifest
	}
	return segments, nil
}

// IsPlaylistRef reports whether a segment reference points at another
// playlist rather than a media segment. Master manifests list variant
// playlists instead of segments; callers use this to resolve one level
// of nesting.
func IsPlaylistRef(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".m3u8") || strings.HasSuffix(lower, ".mpd")
}

// IsMaster reports whether every reference in the parsed manifest is
// itself a playlist, which marks it as a master manifest.
func IsMaster(segments []Segment) bool {
	if len(segments) == 0 {
		return false
	}
	for _, s := range segments {
		if !IsPlaylistRef(s.URL) {
			return false
		}
	}
	return true
}
