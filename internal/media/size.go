package media

import "fmt"

type sizeState int

const (
	sizeUnresolved sizeState = iota
	sizeKnown
	sizeStreaming
)

// Size is the probed byte size of a resource. It starts unresolved,
// becomes a byte count once probed, or is marked streaming for adaptive
// manifests where a single size is not meaningful.
type Size struct {
	state sizeState
	bytes int64
}

// SizeUnresolved returns a Size that has not been probed yet.
func SizeUnresolved() Size {
	return Size{state: sizeUnresolved}
}

// SizeOfBytes returns a known Size of n bytes.
func SizeOfBytes(n int64) Size {
	return Size{state: sizeKnown, bytes: n}
}

// SizeStreaming returns the variable-size marker used for adaptive streams.
func SizeStreaming() Size {
	return Size{state: sizeStreaming}
}

// Known reports whether a byte count has been resolved.
func (s Size) Known() bool { return s.state == sizeKnown }

// Streaming reports whether the resource has variable streaming size.
func (s Size) Streaming() bool { return s.state == sizeStreaming }

// Bytes returns the resolved byte count, or 0 when not known.
func (s Size) Bytes() int64 {
	if s.state != sizeKnown {
		return 0
	}
	return s.bytes
}

// String renders the size in a human-readable form.
func (s Size) String() string {
	switch s.state {
	case sizeStreaming:
		return "Streaming"
	case sizeKnown:
		units := []string{"B", "KB", "MB", "GB", "TB"}
		size := float64(s.bytes)
		i := 0
		for size >= 1024 && i < len(units)-1 {
			size /= 1024
			i++
		}
		return fmt.Sprintf("%.1f %s", size, units[i])
	default:
		return "Unknown size"
	}
}
