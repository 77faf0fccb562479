package prerecord

// queueItem is one slot of the loop's holding area. Exactly one of
// frame and event is non-nil. The slot owns the handle it carries until
// dequeue transfers it to the caller.
type queueItem struct {
	frame      *Frame
	event      *Event
	gopID      uint64
	isKeyframe bool
	size       int
}

// itemQueue is the FIFO holding area: frames tagged with GOP ids plus
// the segment and gap events that must be replayed on drain. All
// mutations run under the owning loop's lock.
type itemQueue struct {
	tl    *timeline
	items []queueItem

	frames int   // queued frame count
	bytes  int64 // queued payload bytes

	gopID       uint64 // id of the newest GOP, bumped on every keyframe
	oldestGOPID uint64 // id of the GOP at the head of the queue

	// segAppliedToOutput marks that the last segment enqueued into an
	// empty queue was already applied to the output side; the dequeue
	// of that event must skip the duplicate application.
	segAppliedToOutput bool
}

func newItemQueue(tl *timeline) *itemQueue {
	return &itemQueue{tl: tl}
}

func (q *itemQueue) len() int {
	return len(q.items)
}

func (q *itemQueue) empty() bool {
	return len(q.items) == 0
}

// gopCount returns the number of distinct GOPs currently queued.
func (q *itemQueue) gopCount() int {
	if q.frames == 0 {
		return 0
	}
	return int(q.gopID - q.oldestGOPID + 1)
}

// enqueueFrame appends f and assigns its GOP id, opening a new GOP when
// f is a keyframe. Reports whether f became the head of an empty queue
// without being a keyframe, an upstream contract violation the caller
// is expected to log.
func (q *itemQueue) enqueueFrame(f *Frame) (headViolation bool) {
	key := f.IsKeyframe()
	if key {
		q.gopID++
	}
	if len(q.items) == 0 || q.frames == 0 {
		headViolation = !key
		q.oldestGOPID = q.gopID
	}
	q.items = append(q.items, queueItem{
		frame:      f,
		gopID:      q.gopID,
		isKeyframe: key,
		size:       len(f.Data),
	})
	q.frames++
	q.bytes += int64(len(f.Data))
	q.tl.applyFrame(f, true)
	return headViolation
}

// enqueueControl appends a segment or gap event, applying it to the
// input side of the timeline. A segment entering an empty queue is
// additionally applied to the output side right away so downstream time
// tracking does not wait for the drain; the later dequeue of that event
// is then a skipped duplicate.
func (q *itemQueue) enqueueControl(e *Event) {
	switch e.Type {
	case EventSegment:
		q.tl.applySegment(e.Segment, true)
		if len(q.items) == 0 {
			q.tl.applySegment(e.Segment, false)
			q.segAppliedToOutput = true
		}
	case EventGap:
		q.tl.applyGap(e, true)
	}
	q.items = append(q.items, queueItem{event: e})
}

// peekHead returns the oldest item without removing it.
func (q *itemQueue) peekHead() (queueItem, bool) {
	if len(q.items) == 0 {
		return queueItem{}, false
	}
	return q.items[0], true
}

// dequeue pops the oldest item and applies its output-side timeline
// effects. Ownership of the item's handle transfers to the caller, who
// must forward it or release it exactly once.
func (q *itemQueue) dequeue() (queueItem, bool) {
	if len(q.items) == 0 {
		return queueItem{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]

	switch {
	case it.frame != nil:
		q.frames--
		q.bytes -= int64(it.size)
		q.tl.applyFrame(it.frame, false)
		if q.frames == 0 {
			q.tl.level = 0
		}
	case it.event != nil:
		switch it.event.Type {
		case EventSegment:
			if q.segAppliedToOutput {
				q.segAppliedToOutput = false
			} else {
				q.tl.applySegment(it.event.Segment, false)
			}
		case EventGap:
			q.tl.applyGap(it.event, false)
		}
	}
	return it, true
}

// clear drops every queued item, releasing each handle, and returns the
// number of frames and events discarded. GOP ids and timeline segments
// are left for the caller to reset where the protocol demands it.
func (q *itemQueue) clear() (frames, events int) {
	for _, it := range q.items {
		switch {
		case it.frame != nil:
			it.frame.Release()
			frames++
		case it.event != nil:
			it.event.Release()
			events++
		}
	}
	q.items = nil
	q.frames = 0
	q.bytes = 0
	q.tl.level = 0
	q.segAppliedToOutput = false
	return frames, events
}

// resetGOPIDs returns the GOP id counters to their initial state.
func (q *itemQueue) resetGOPIDs() {
	q.gopID = 0
	q.oldestGOPID = 0
}
