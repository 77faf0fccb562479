package prerecord

import "time"

// timeline tracks the stream position on both sides of the queue and
// derives the buffered duration between them. The input side advances
// as frames are enqueued, the output side as they are dequeued; the
// difference of their running times is how much pre-event footage the
// loop currently holds.
//
// Cached running times are recomputed lazily: applying a frame or gap
// taints that side, and the next level update maps the side's position
// through its segment again.
type timeline struct {
	input  Segment
	output Segment

	inputTime       time.Duration // cached running time of input.Position
	inputTimeKnown  bool
	outputTime      time.Duration
	outputTimeKnown bool

	// startTime is the running time of the first valid input timestamp,
	// the baseline that makes the level meaningful before anything has
	// been released to the output side.
	startTime      time.Duration
	startTimeKnown bool

	inputTainted  bool
	outputTainted bool

	level time.Duration // buffered duration between the two sides
}

func newTimeline() *timeline {
	return &timeline{
		input:  newTimeSegment(),
		output: newTimeSegment(),
	}
}

// reset returns both sides to fresh segments and forgets the baseline
// and cached running times.
func (t *timeline) reset() {
	*t = timeline{
		input:  newTimeSegment(),
		output: newTimeSegment(),
	}
}

func (t *timeline) side(input bool) *Segment {
	if input {
		return &t.input
	}
	return &t.output
}

func (t *timeline) taint(input bool) {
	if input {
		t.inputTainted = true
	} else {
		t.outputTainted = true
	}
}

// applySegment installs seg on one side. Non-time segments collapse to
// a degenerate open-ended time segment since duration accounting needs
// a time base. The side's cached running time stays valid until the
// next frame or gap moves the position.
func (t *timeline) applySegment(seg Segment, input bool) {
	if seg.Format != FormatTime {
		seg.Format = FormatTime
		seg.Start = 0
		seg.Stop = NoTimestamp
		seg.Time = 0
	}
	if input {
		t.input = seg
		t.inputTainted = false
	} else {
		t.output = seg
		t.outputTainted = false
	}
}

// applyFrame advances one side's position past f. Frames without a
// valid timestamp leave the position untouched, assuming time did not
// move since the previous frame.
func (t *timeline) applyFrame(f *Frame, input bool) {
	t.applyPosition(f.Timestamp, f.Duration, input)
}

// applyGap advances one side's position over a gap announced by e.
func (t *timeline) applyGap(e *Event, input bool) {
	t.applyPosition(e.Timestamp, e.Duration, input)
}

func (t *timeline) applyPosition(timestamp, duration time.Duration, input bool) {
	if !validTime(timestamp) {
		return
	}
	seg := t.side(input)
	if input && !t.startTimeKnown {
		if rt, ok := seg.runningTime(timestamp); ok {
			t.startTime = rt
			t.startTimeKnown = true
		}
	}
	if validTime(duration) {
		timestamp += duration
	}
	seg.Position = timestamp
	t.taint(input)
	t.updateLevel()
}

// updateLevel recomputes the buffered duration, refreshing the cached
// running time of any side whose position moved since the last call.
func (t *timeline) updateLevel() {
	if t.inputTainted {
		t.inputTime, t.inputTimeKnown = t.input.runningTime(t.input.Position)
		t.inputTainted = false
	}
	if t.outputTainted {
		t.outputTime, t.outputTimeKnown = t.output.runningTime(t.output.Position)
		t.outputTainted = false
	}
	switch {
	case !t.inputTimeKnown:
		t.level = 0
	case !t.outputTimeKnown && t.startTimeKnown && t.inputTime >= t.startTime:
		t.level = t.inputTime - t.startTime
	case t.outputTimeKnown && t.inputTime >= t.outputTime:
		t.level = t.inputTime - t.outputTime
	default:
		t.level = 0
	}
}

// bufferedDuration returns the level computed by the last update.
func (t *timeline) bufferedDuration() time.Duration {
	return t.level
}
