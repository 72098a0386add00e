package media

// Status represents the download lifecycle state of a detected resource.
type Status string

const (
	StatusDetected    Status = "detected"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// CanTransitionTo reports whether moving from s to next follows the
// detected → downloading → {completed|failed} order. Terminal states
// accept no further transitions.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDetected:
		return next == StatusDownloading
	case StatusDownloading:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
