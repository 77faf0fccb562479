package prerecord

import "time"

// SegmentFormat identifies the unit a segment's positions are expressed
// in. Duration accounting inside the loop requires FormatTime; segments
// in any other format are normalized on arrival.
type SegmentFormat int

const (
	FormatUndefined SegmentFormat = iota
	FormatBytes                   // Positions are byte offsets
	FormatTime                    // Positions are stream time
)

func (f SegmentFormat) String() string {
	switch f {
	case FormatBytes:
		return "Bytes"
	case FormatTime:
		return "Time"
	default:
		return "Undefined"
	}
}

// Segment describes one contiguous run of the stream timeline, the
// playback region announced by a segment event. Position advances as
// frames flow and is mapped through Start and Rate to obtain the
// running time used for duration accounting.
type Segment struct {
	Format   SegmentFormat
	Rate     float64       // Playback rate, 1.0 for normal forward play
	Start    time.Duration // First valid position in the segment
	Stop     time.Duration // Last valid position, NoTimestamp if open-ended
	Time     time.Duration // Stream time corresponding to Start
	Position time.Duration // Current position, advanced by frames and gaps
}

// newTimeSegment returns a fresh open-ended time segment starting at 0.
func newTimeSegment() Segment {
	return Segment{
		Format: FormatTime,
		Rate:   1,
		Start:  0,
		Stop:   NoTimestamp,
		Time:   0,
	}
}

// runningTime maps pos through the segment to monotonic running time.
// The result is signed: positions before Start yield negative values.
// ok is false when pos carries no valid time.
func (s *Segment) runningTime(pos time.Duration) (time.Duration, bool) {
	if !validTime(pos) {
		return 0, false
	}
	d := pos - s.Start
	rate := s.Rate
	if rate < 0 {
		rate = -rate
	}
	if rate != 0 && rate != 1 {
		d = time.Duration(float64(d) / rate)
	}
	return d, true
}
