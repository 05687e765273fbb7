package enums

import "fmt"

// BroadcastStatus tracks a mass-send job.
type BroadcastStatus string

const (
	BroadcastStatusPending   BroadcastStatus = "pending"
	BroadcastStatusRunning   BroadcastStatus = "running"
	BroadcastStatusPaused    BroadcastStatus = "paused"
	BroadcastStatusCompleted BroadcastStatus = "completed"
	BroadcastStatusCancelled BroadcastStatus = "cancelled"
)

var validBroadcastStatuses = []BroadcastStatus{
	BroadcastStatusPending,
	BroadcastStatusRunning,
	BroadcastStatusPaused,
	BroadcastStatusCompleted,
	BroadcastStatusCancelled,
}

func (b BroadcastStatus) String() string {
	return string(b)
}

func (b BroadcastStatus) IsValid() bool {
	for _, candidate := range validBroadcastStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// Halted reports whether a running job should stop sending.
func (b BroadcastStatus) Halted() bool {
	return b == BroadcastStatusPaused || b == BroadcastStatusCancelled
}

func ParseBroadcastStatus(value string) (BroadcastStatus, error) {
	for _, candidate := range validBroadcastStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid broadcast status %q", value)
}
