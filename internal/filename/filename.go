// Package filename maps resource URLs to safe destination filenames.
package filename

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultExtension is appended when no extension can be inferred from the URL.
const DefaultExtension = ".mp4"

// illegalChars are characters not allowed in destination filenames.
var illegalChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// inferableExtensions is the ordered list of extensions probed for in
// the URL when a name is missing one.
var inferableExtensions = []string{
	".mp4", ".webm", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".m4v",
	".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a", ".wma",
	".m3u8", ".mpd",
}

// Derive maps a URL and an optional user override to a destination
// filename. An override that already carries an extension is returned
// verbatim; otherwise an extension is inferred from the URL, defaulting
// to .mp4.
func Derive(rawURL, override string) string {
	if override != "" {
		if strings.Contains(override, ".") {
			return override
		}
		return override + inferExtension(rawURL)
	}

	name := lastPathSegment(rawURL)
	name = illegalChars.ReplaceAllString(name, "_")

	if len(name) < 3 {
		name = fmt.Sprintf("media_%d", time.Now().UnixMilli())
	}
	if !strings.Contains(name, ".") {
		name += inferExtension(rawURL)
	}
	return name
}

// lastPathSegment extracts the final path component of the URL with any
// query string stripped.
func lastPathSegment(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return path
}

// inferExtension finds the first known extension substring in the URL.
func inferExtension(rawURL string) string {
	lower := strings.ToLower(rawURL)
	for _, ext := range inferableExtensions {
		if strings.Contains(lower, ext) {
			return ext
		}
	}
	return DefaultExtension
}

// Stem returns the filename without its extension.
func Stem(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
