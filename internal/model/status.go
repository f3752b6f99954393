package model

import "time"

// NodeStatus is a lifecycle status reported by a status record.
type NodeStatus string

const (
	StatusQueued    NodeStatus = "queued"
	StatusSubmitted NodeStatus = "submitted"
	StatusActive    NodeStatus = "active"
	StatusComplete  NodeStatus = "complete"
	StatusAborted   NodeStatus = "aborted"
	StatusUnknown   NodeStatus = "unknown"
)

// ParseNodeStatus maps a status command to a NodeStatus. Anything outside the
// known set is StatusUnknown.
func ParseNodeStatus(command string) NodeStatus {
	switch s := NodeStatus(command); s {
	case StatusQueued, StatusSubmitted, StatusActive, StatusComplete, StatusAborted:
		return s
	default:
		return StatusUnknown
	}
}

// StatusEvent is the status change carried by a status record.
type StatusEvent struct {
	Status NodeStatus
	Time   time.Time
	Source Record
}

// NewStatusEvent derives a StatusEvent from r. It reports false when r is not
// a status record.
func NewStatusEvent(r Record) (StatusEvent, bool) {
	if r.CommandType != CommandStatus {
		return StatusEvent{}, false
	}
	return StatusEvent{
		Status: ParseNodeStatus(r.Command),
		Time:   r.Timestamp,
		Source: r,
	}, true
}

// TimePoint is one observed status transition.
type TimePoint struct {
	Status NodeStatus `json:"status"`
	Time   time.Time  `json:"time"`
}
