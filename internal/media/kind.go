package media

// Kind is the human-readable classification of a media resource.
type Kind string

// Kinds without a container-specific label. Container-specific kinds
// (e.g. "Video (MP4)") are produced by the classifier's extension table.
const (
	KindVideo Kind = "Video"
	KindAudio Kind = "Audio"
	KindHLS   Kind = "HLS Stream (M3U8)"
	KindDASH  Kind = "DASH Stream (MPD)"
	KindFile  Kind = "Media File"
)

// IsAdaptive reports whether the kind is an adaptive-streaming manifest
// (HLS or DASH) rather than a directly downloadable file.
func (k Kind) IsAdaptive() bool {
	return k == KindHLS || k == KindDASH
}

// DetectionChannel identifies how a resource was found.
type DetectionChannel string

const (
	ChannelNetwork  DetectionChannel = "network"   // request observer
	ChannelDOM      DetectionChannel = "dom"       // media/link elements
	ChannelScript   DetectionChannel = "script"    // inline script text
	ChannelPageText DetectionChannel = "page-text" // free-text scan
	ChannelManual   DetectionChannel = "manual"    // user-triggered scan
)

// ParseChannel converts a wire value into a DetectionChannel.
func ParseChannel(s string) (DetectionChannel, bool) {
	switch DetectionChannel(s) {
	case ChannelNetwork, ChannelDOM, ChannelScript, ChannelPageText, ChannelManual:
		return DetectionChannel(s), true
	default:
		return "", false
	}
}

// IsNetworkLevel reports whether detections on this channel go through
// the stricter network classifier, which suppresses individual
// adaptive-stream segment files. Content-originated channels use the
// permissive classifier instead.
func (c DetectionChannel) IsNetworkLevel() bool {
	return c == ChannelNetwork
}
