package types

import "time"

// EventOp is the kind of raw filesystem event delivered by the watcher.
type EventOp uint8

const (
	EventCreated EventOp = iota
	EventDeleted
	EventModified
	EventMoved
	EventDirMoved
)

func (op EventOp) String() string {
	switch op {
	case EventCreated:
		return "created"
	case EventDeleted:
		return "deleted"
	case EventModified:
		return "modified"
	case EventMoved:
		return "moved"
	case EventDirMoved:
		return "dir-moved"
	default:
		return "unknown"
	}
}

// RawEvent is one filesystem notification. Paths are absolute. Dest is only set
// for EventMoved and EventDirMoved. Size is -1 when the producer did not stat the file.
type RawEvent struct {
	Op    EventOp
	Path  string
	Dest  string
	IsDir bool
	Size  int64
	Time  time.Time
}
