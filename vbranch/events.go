package vbranch

import "github.com/gitbutlerapp/vbranch-core/stack"

// StackUpdate is emitted once per affected stack at the end of every
// operation façade verb (§4.7 step 4).
type StackUpdate struct {
	ProjectID string
	StackID   stack.StackId
}

// EventSink receives StackUpdate notifications. The CLI passes NullSink,
// which discards them; a future daemon-mode front end would fan them out
// over IPC.
type EventSink interface {
	Publish(StackUpdate)
}

// NullSink discards every event; the zero value is ready to use.
type NullSink struct{}

func (NullSink) Publish(StackUpdate) {}

// ChannelSink publishes to a buffered channel, for callers (tests, a
// future UI) that want to observe the event stream.
type ChannelSink struct {
	C chan StackUpdate
}

// NewChannelSink returns a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan StackUpdate, buffer)}
}

func (s *ChannelSink) Publish(u StackUpdate) {
	select {
	case s.C <- u:
	default:
		// A full buffer means nobody is listening; events are
		// best-effort notifications, not a durable log.
	}
}
