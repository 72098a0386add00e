// Package classify decides whether a candidate URL (or a response
// content type) refers to playable media, and what kind it is.
//
// URL classification is necessarily heuristic: there is no universal
// grammar for media URLs. The rule order (skip lists first, then the
// extension table, then known streaming patterns, then generic
// substring fallbacks) keeps false positives from tracking pixels and
// page chrome low while still catching master playlists that carry no
// canonical extension.
package classify

import (
	"strings"

	"github.com/umdl/umd-host/internal/media"
)

// skipPatterns reject incidental assets and markup noise outright.
var skipPatterns = []string{
	"favicon", "icon", "logo", "thumbnail", "avatar", "profile",
	"analytics", "tracking", "beacon", "pixel", "ads", "advertisement",
	".gif", ".jpg", ".jpeg", ".png", ".webp", ".svg", ".ico",
	".css", ".js", ".json", ".xml", ".txt", ".html", ".php",
}

// segmentFragments suppress individual adaptive-stream segment files so
// that only the manifest itself is surfaced. Applied at network level
// only; content scans stay permissive.
var segmentFragments = []string{"f4v", "segment", "chunk", "fragment"}

// extensionKinds maps a file extension to its human-readable kind.
var extensionKinds = map[string]media.Kind{
	"mp4":  "Video (MP4)",
	"webm": "Video (WebM)",
	"avi":  "Video (AVI)",
	"mkv":  "Video (MKV)",
	"mov":  "Video (MOV)",
	"wmv":  "Video (WMV)",
	"flv":  "Video (FLV)",
	"m4v":  "Video (M4V)",
	"mp3":  "Audio (MP3)",
	"wav":  "Audio (WAV)",
	"flac": "Audio (FLAC)",
	"aac":  "Audio (AAC)",
	"ogg":  "Audio (OGG)",
	"m4a":  "Audio (M4A)",
	"wma":  "Audio (WMA)",
	"m3u8": media.KindHLS,
	"mpd":  media.KindDASH,
}

// extensionOrder fixes the lookup order for extension matching so that
// classification is deterministic.
var extensionOrder = []string{
	"mp4", "webm", "avi", "mkv", "mov", "wmv", "flv", "m4v",
	"mp3", "wav", "flac", "aac", "ogg", "m4a", "wma",
	"m3u8", "mpd",
}

// streamingPatterns are URL substrings of well-known streaming
// endpoints that usually lack a canonical extension.
var streamingPatterns = []string{
	"videoplayback",
	"master.m3u8",
	"playlist.m3u8",
	"index.m3u8",
	"manifest.mpd",
}

// FromURL classifies a URL observed at the network level. It applies
// the full skip list including adaptive-segment suppression.
func FromURL(rawURL string) (media.Kind, bool) {
	return classifyURL(rawURL, true)
}

// FromScan classifies a URL found by scanning page content (DOM,
// script text, free text). Segment suppression is not applied so that
// segment and manifest patterns embedded in markup are still caught.
func FromScan(rawURL string) (media.Kind, bool) {
	return classifyURL(rawURL, false)
}

func classifyURL(rawURL string, networkLevel bool) (media.Kind, bool) {
	if rawURL == "" {
		return "", false
	}
	lower := strings.ToLower(rawURL)

	for _, p := range skipPatterns {
		if strings.Contains(lower, p) {
			return "", false
		}
	}

	if networkLevel && isSegmentArtifact(lower) {
		return "", false
	}

	if ext, ok := matchExtension(lower); ok {
		return extensionKinds[ext], true
	}

	for _, p := range streamingPatterns {
		if strings.Contains(lower, p) {
			return streamingKind(lower), true
		}
	}

	return "", false
}

// isSegmentArtifact reports whether the URL looks like an individual
// stream segment rather than a playable resource.
func isSegmentArtifact(lower string) bool {
	if strings.HasSuffix(stripQuery(lower), ".ts") {
		return true
	}
	for _, f := range segmentFragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// matchExtension matches the URL path against the extension table,
// ignoring any query string or fragment.
func matchExtension(lower string) (string, bool) {
	trimmed := stripQuery(lower)
	for _, ext := range extensionOrder {
		if strings.HasSuffix(trimmed, "."+ext) {
			return ext, true
		}
	}
	return "", false
}

// streamingKind tags a URL accepted via a streaming pattern. Specific
// manifest markers win; the literal words "video"/"audio" give a
// generic tag; anything else falls back to the generic media-file kind.
func streamingKind(lower string) media.Kind {
	switch {
	case strings.Contains(lower, ".m3u8"):
		return media.KindHLS
	case strings.Contains(lower, ".mpd"):
		return media.KindDASH
	case strings.Contains(lower, "video"):
		return media.KindVideo
	case strings.Contains(lower, "audio"):
		return media.KindAudio
	default:
		return media.KindFile
	}
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// FromContentType maps an HTTP response content type to a media kind.
// Header data is authoritative, so a successful match overrides any
// URL-derived classification.
func FromContentType(contentType string) (media.Kind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "":
		return "", false
	case strings.Contains(ct, "application/vnd.apple.mpegurl"),
		strings.Contains(ct, "application/x-mpegurl"):
		return media.KindHLS, true
	case strings.Contains(ct, "application/dash+xml"):
		return media.KindDASH, true
	case strings.HasPrefix(ct, "video/"):
		return media.KindVideo, true
	case strings.HasPrefix(ct, "audio/"):
		return media.KindAudio, true
	default:
		return "", false
	}
}
