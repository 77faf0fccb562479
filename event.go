package prerecord

import "time"

// EventType identifies the control events understood by the loop.
// Events of other types still flow through but receive no special
// handling.
type EventType int

const (
	EventUnknown        EventType = iota
	EventSegment                  // New segment, carries a Segment
	EventGap                      // Timestamp advance without data
	EventEOS                      // End of stream
	EventFlushStart               // Start discarding data
	EventFlushStop                // Stop flushing, optionally reset time
	EventCustomDownstream         // Named application event, flows with data
	EventCustomUpstream           // Named application event, flows against data
)

func (e EventType) String() string {
	switch e {
	case EventSegment:
		return "Segment"
	case EventGap:
		return "Gap"
	case EventEOS:
		return "EOS"
	case EventFlushStart:
		return "FlushStart"
	case EventFlushStop:
		return "FlushStop"
	case EventCustomDownstream:
		return "CustomDownstream"
	case EventCustomUpstream:
		return "CustomUpstream"
	default:
		return "Unknown"
	}
}

// Event is a control message flowing through the loop alongside frames.
// Like frames, events are owned by the producer until handed to the
// loop; dropped events have Release called exactly once.
type Event struct {
	Type EventType

	Segment   Segment       // EventSegment only
	Timestamp time.Duration // EventGap: start of the gap
	Duration  time.Duration // EventGap: length, NoTimestamp if unknown
	Name      string        // Custom events: application event name
	ResetTime bool          // EventFlushStop: restart the timeline at 0

	// OnRelease, if set, is invoked exactly once when the loop drops
	// the event instead of forwarding it.
	OnRelease func()
}

// NewSegmentEvent creates a segment event announcing seg.
func NewSegmentEvent(seg Segment) *Event {
	return &Event{Type: EventSegment, Segment: seg}
}

// NewGapEvent creates a gap event covering [timestamp, timestamp+duration).
func NewGapEvent(timestamp, duration time.Duration) *Event {
	return &Event{Type: EventGap, Timestamp: timestamp, Duration: duration}
}

// NewEOSEvent creates an end-of-stream event.
func NewEOSEvent() *Event {
	return &Event{Type: EventEOS}
}

// NewFlushStartEvent creates a flush-start event.
func NewFlushStartEvent() *Event {
	return &Event{Type: EventFlushStart}
}

// NewFlushStopEvent creates a flush-stop event. resetTime restarts the
// downstream timeline at zero.
func NewFlushStopEvent(resetTime bool) *Event {
	return &Event{Type: EventFlushStop, ResetTime: resetTime}
}

// NewCustomDownstreamEvent creates a named application event that
// travels in the data direction. The loop consumes it when name matches
// the configured flush trigger.
func NewCustomDownstreamEvent(name string) *Event {
	return &Event{Type: EventCustomDownstream, Name: name}
}

// NewCustomUpstreamEvent creates a named application event that travels
// against the data direction, used to rearm the loop.
func NewCustomUpstreamEvent(name string) *Event {
	return &Event{Type: EventCustomUpstream, Name: name}
}

// Release invokes the OnRelease hook, at most once.
func (e *Event) Release() {
	if e.OnRelease != nil {
		cb := e.OnRelease
		e.OnRelease = nil
		cb()
	}
}
