// Core frame and timestamp types used across the prerecord package.
package prerecord

import "time"

// NoTimestamp marks an unknown Timestamp or Duration. All negative
// values are treated as unknown; valid stream times are >= 0.
const NoTimestamp = time.Duration(-1)

// validTime reports whether t carries a usable stream time.
func validTime(t time.Duration) bool {
	return t >= 0
}

// FrameType indicates whether a frame is a keyframe or delta frame.
type FrameType int

const (
	FrameTypeUnknown FrameType = iota
	FrameTypeKey               // I-frame, can be decoded independently
	FrameTypeDelta             // P/B-frame, requires previous frames
)

func (f FrameType) String() string {
	switch f {
	case FrameTypeKey:
		return "Key"
	case FrameTypeDelta:
		return "Delta"
	default:
		return "Unknown"
	}
}

// Frame holds one encoded video frame flowing through the loop.
// The Data slice is owned by the producer until the frame is handed to
// Loop.Push; after that the loop either forwards it to the sink (which
// takes over ownership) or drops it and calls Release.
type Frame struct {
	Data      []byte        // Encoded bitstream data
	FrameType FrameType     // Key or delta frame
	Timestamp time.Duration // Decode timestamp, NoTimestamp if unknown
	Duration  time.Duration // Frame duration, NoTimestamp if unknown

	// OnRelease, if set, is invoked exactly once when ownership of the
	// frame ends without it being forwarded (pruned, flushed away or
	// discarded at EOS). Producers recycling buffers hook it to reclaim
	// Data.
	OnRelease func()
}

// IsKeyframe returns true if this is a keyframe.
func (f *Frame) IsKeyframe() bool {
	return f.FrameType == FrameTypeKey
}

// Release invokes the OnRelease hook, at most once.
func (f *Frame) Release() {
	if f.OnRelease != nil {
		cb := f.OnRelease
		f.OnRelease = nil
		cb()
	}
}

// Clone creates a deep copy of the frame. The clone owns its own Data
// and carries no release hook.
func (f *Frame) Clone() *Frame {
	clone := &Frame{
		FrameType: f.FrameType,
		Timestamp: f.Timestamp,
		Duration:  f.Duration,
	}
	if f.Data != nil {
		clone.Data = make([]byte, len(f.Data))
		copy(clone.Data, f.Data)
	}
	return clone
}

// EndTimestamp returns Timestamp+Duration when both are known,
// otherwise the raw Timestamp.
func (f *Frame) EndTimestamp() time.Duration {
	if !validTime(f.Timestamp) {
		return NoTimestamp
	}
	if validTime(f.Duration) {
		return f.Timestamp + f.Duration
	}
	return f.Timestamp
}
