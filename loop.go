package prerecord

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Mode identifies the loop's operating state.
type Mode int

const (
	ModeBuffering   Mode = iota // absorb frames into the holding area
	ModePassThrough             // forward frames directly to the sink
)

func (m Mode) String() string {
	switch m {
	case ModeBuffering:
		return "Buffering"
	case ModePassThrough:
		return "PassThrough"
	default:
		return "Unknown"
	}
}

// EOSPolicy selects what happens to buffered footage when end of
// stream arrives.
type EOSPolicy int

const (
	// EOSAuto discards the queue while buffering and drains it in
	// pass-through, the behavior that matches each mode's intent.
	EOSAuto EOSPolicy = iota
	// EOSAlways drains the queue to the sink in both modes.
	EOSAlways
	// EOSNever discards the queue in both modes.
	EOSNever
)

func (p EOSPolicy) String() string {
	switch p {
	case EOSAuto:
		return "Auto"
	case EOSAlways:
		return "Always"
	case EOSNever:
		return "Never"
	default:
		return "Unknown"
	}
}

// ParseEOSPolicy maps the textual policy names used in configuration
// files to an EOSPolicy.
func ParseEOSPolicy(s string) (EOSPolicy, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return EOSAuto, nil
	case "always":
		return EOSAlways, nil
	case "never":
		return EOSNever, nil
	default:
		return EOSAuto, fmt.Errorf("prerecord: unknown eos policy %q", s)
	}
}

const (
	// DefaultFlushTriggerName is the custom downstream event name that
	// flushes the buffered footage and switches to pass-through.
	DefaultFlushTriggerName = "prerecord-flush"

	// RearmTriggerName is the custom upstream event name that returns
	// a drained loop to buffering. Unlike the flush trigger it is not
	// configurable.
	RearmTriggerName = "prerecord-arm"

	// DefaultMaxBufferedSeconds is the duration budget callers
	// typically start from when none is configured explicitly.
	DefaultMaxBufferedSeconds = 10
)

// Sink receives the loop's output. Both methods are always called with
// the loop's lock released, so implementations may safely call back
// into the loop.
type Sink interface {
	// PushFrame delivers one frame. Ownership transfers to the sink.
	PushFrame(f *Frame) error
	// PushEvent delivers one control event and reports whether it was
	// accepted. Ownership transfers to the sink.
	PushEvent(e *Event) bool
}

// Stats is a snapshot of the loop's counters. Dropped counters cover
// pruner evictions only; footage discarded by rearm, flush-start or an
// end-of-stream discard is released without being counted as dropped.
type Stats struct {
	DroppedGOPs   uint64 // GOPs evicted by the pruner
	DroppedFrames uint64 // frames evicted by the pruner
	DroppedEvents uint64 // queued events evicted by the pruner
	QueuedGOPs    int    // distinct GOPs currently queued
	QueuedFrames  int    // frames currently queued
	FlushCount    uint64 // flush triggers that drained the queue
	RearmCount    uint64 // rearm triggers that resumed buffering
}

// Config configures a Loop.
type Config struct {
	// MaxBufferedSeconds bounds the pre-event footage kept while
	// buffering, in whole seconds. 0 keeps everything; negative values
	// clamp to 0.
	MaxBufferedSeconds int

	// EOSPolicy selects drain or discard behavior at end of stream.
	EOSPolicy EOSPolicy

	// FlushTriggerName overrides the custom downstream event name that
	// triggers a flush. Empty selects DefaultFlushTriggerName.
	FlushTriggerName string

	// Sink receives forwarded frames and events. Required.
	Sink Sink

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Loop is a GOP-aware bounded holding area for encoded video.
//
// In buffering mode (the initial state) frames accumulate in a queue
// bounded by a duration budget; whole GOPs are evicted from the head
// as the budget is exceeded. A flush trigger drains the queue to the
// sink and switches to pass-through, where frames bypass the queue
// entirely. A rearm trigger empties the loop and resumes buffering.
//
// All methods are safe for concurrent use.
type Loop struct {
	mu sync.Mutex

	mode     Mode
	eos      bool
	flushing bool

	maxBuffered time.Duration
	eosPolicy   EOSPolicy
	triggerName string

	tl *timeline
	q  *itemQueue

	stats Stats

	sink   Sink
	logger *slog.Logger
}

// New creates a loop in buffering mode.
func New(cfg Config) (*Loop, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("prerecord: sink is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FlushTriggerName == "" {
		cfg.FlushTriggerName = DefaultFlushTriggerName
	}
	secs := cfg.MaxBufferedSeconds
	if secs < 0 {
		secs = 0
	}

	tl := newTimeline()
	return &Loop{
		mode:        ModeBuffering,
		maxBuffered: time.Duration(secs) * time.Second,
		eosPolicy:   cfg.EOSPolicy,
		triggerName: cfg.FlushTriggerName,
		tl:          tl,
		q:           newItemQueue(tl),
		sink:        cfg.Sink,
		logger:      cfg.Logger,
	}, nil
}

// Push hands one frame to the loop. While buffering the frame is
// queued and old GOPs are pruned to the duration budget; in
// pass-through it goes straight to the sink.
//
// On a nil or sink-originated error the loop (or sink) has taken
// ownership of f. On ErrFlushing or ErrEOS ownership stays with the
// caller.
func (l *Loop) Push(f *Frame) error {
	l.mu.Lock()
	if l.flushing {
		l.mu.Unlock()
		return ErrFlushing
	}
	if l.eos {
		l.mu.Unlock()
		return ErrEOS
	}

	if l.mode == ModePassThrough {
		l.mu.Unlock()
		return l.sink.PushFrame(f)
	}

	if l.q.enqueueFrame(f) {
		l.logger.Warn("first queued frame is not a keyframe",
			"timestamp", f.Timestamp)
	}
	l.prune()
	l.logger.Debug("queued frame",
		"keyframe", f.IsKeyframe(),
		"timestamp", f.Timestamp,
		"buffered", l.tl.bufferedDuration(),
		"queued_frames", l.q.frames)
	l.mu.Unlock()
	return nil
}

// PushEvent hands a control event traveling in the data direction to
// the loop and reports whether it was accepted: consumed (the flush
// trigger), queued for replay, or forwarded to the sink.
func (l *Loop) PushEvent(e *Event) bool {
	switch e.Type {
	case EventEOS:
		return l.handleEOS(e)
	case EventFlushStart:
		return l.handleFlushStart(e)
	case EventFlushStop:
		return l.handleFlushStop(e)
	case EventCustomDownstream:
		return l.handleCustomDownstream(e)
	case EventSegment, EventGap:
		return l.handleSegmentGap(e)
	default:
		return l.sink.PushEvent(e)
	}
}

// HandleUpstreamEvent handles a control event traveling against the
// data direction and reports whether it was consumed. The rearm
// trigger is consumed here; anything else is left for the caller to
// propagate further upstream.
func (l *Loop) HandleUpstreamEvent(e *Event) bool {
	if e.Type == EventCustomUpstream && e.Name == RearmTriggerName {
		l.Rearm()
		e.Release()
		return true
	}
	return false
}

// TriggerFlush drains every buffered item to the sink in FIFO order
// and switches to pass-through. In pass-through it is a no-op, which
// makes duplicate or concurrent triggers safe.
func (l *Loop) TriggerFlush() {
	l.mu.Lock()
	if l.mode != ModeBuffering {
		l.mu.Unlock()
		l.logger.Debug("flush trigger ignored, already in pass-through")
		return
	}
	bytes := l.q.bytes
	items := l.drainLocked()
	l.mode = ModePassThrough
	l.stats.FlushCount++
	l.mu.Unlock()

	l.logger.Info("flushing buffered footage",
		"items", len(items), "bytes", bytes)
	l.emit(items)
}

// Rearm returns a drained loop to buffering: the queue is cleared with
// all residual handles released, GOP ids restart, and both timeline
// sides reset. In buffering mode it is a no-op and is not counted.
func (l *Loop) Rearm() {
	l.mu.Lock()
	if l.mode != ModePassThrough {
		l.mu.Unlock()
		l.logger.Debug("rearm ignored, already buffering")
		return
	}
	frames, events := l.q.clear()
	l.q.resetGOPIDs()
	l.tl.reset()
	l.mode = ModeBuffering
	l.stats.RearmCount++
	l.mu.Unlock()

	l.logger.Info("rearmed, buffering resumed",
		"released_frames", frames, "released_events", events)
}

// Mode returns the current operating state.
func (l *Loop) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// BufferedDuration returns how much footage the loop currently holds.
func (l *Loop) BufferedDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tl.bufferedDuration()
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.QueuedGOPs = l.q.gopCount()
	s.QueuedFrames = l.q.frames
	return s
}

// SetMaxBufferedSeconds updates the duration budget. Negative values
// clamp to 0 (unlimited). A tightened budget takes effect on the next
// frame arrival.
func (l *Loop) SetMaxBufferedSeconds(secs int) {
	if secs < 0 {
		secs = 0
	}
	l.mu.Lock()
	l.maxBuffered = time.Duration(secs) * time.Second
	l.mu.Unlock()
}

// SetEOSPolicy updates the end-of-stream policy.
func (l *Loop) SetEOSPolicy(p EOSPolicy) {
	l.mu.Lock()
	l.eosPolicy = p
	l.mu.Unlock()
}

// SetFlushTriggerName updates the event name matched against custom
// downstream events. Empty selects DefaultFlushTriggerName.
func (l *Loop) SetFlushTriggerName(name string) {
	if name == "" {
		name = DefaultFlushTriggerName
	}
	l.mu.Lock()
	l.triggerName = name
	l.mu.Unlock()
}

// handleEOS applies the end-of-stream policy to the queued footage,
// then forwards the event unconditionally. GOP counters restart so a
// later flush-stop can begin a clean stream.
func (l *Loop) handleEOS(e *Event) bool {
	l.mu.Lock()
	drain := l.eosPolicy == EOSAlways ||
		(l.eosPolicy == EOSAuto && l.mode == ModePassThrough)

	var items []queueItem
	var frames, events int
	if drain {
		items = l.drainLocked()
	} else {
		frames, events = l.q.clear()
	}
	l.q.resetGOPIDs()
	l.eos = true
	l.mu.Unlock()

	if drain {
		if len(items) > 0 {
			l.logger.Info("draining buffered footage at end of stream",
				"items", len(items))
			l.emit(items)
		}
	} else if frames > 0 || events > 0 {
		l.logger.Info("discarding buffered footage at end of stream",
			"frames", frames, "events", events)
	}
	return l.sink.PushEvent(e)
}

// handleFlushStart discards the queue and stops accepting frames until
// flush-stop arrives. The mode is unchanged.
func (l *Loop) handleFlushStart(e *Event) bool {
	l.mu.Lock()
	frames, events := l.q.clear()
	l.q.resetGOPIDs()
	l.flushing = true
	l.mu.Unlock()

	if frames > 0 || events > 0 {
		l.logger.Debug("discarded queue on flush start",
			"frames", frames, "events", events)
	}
	return l.sink.PushEvent(e)
}

// handleFlushStop resumes accepting frames and clears the end-of-
// stream latch. With ResetTime set the timeline restarts from scratch.
func (l *Loop) handleFlushStop(e *Event) bool {
	l.mu.Lock()
	l.flushing = false
	l.eos = false
	if e.ResetTime {
		l.tl.reset()
	}
	l.mu.Unlock()
	return l.sink.PushEvent(e)
}

// handleCustomDownstream consumes the flush trigger; any other named
// event passes through untouched.
func (l *Loop) handleCustomDownstream(e *Event) bool {
	l.mu.Lock()
	match := e.Name == l.triggerName
	l.mu.Unlock()
	if !match {
		return l.sink.PushEvent(e)
	}

	l.logger.Info("received flush trigger", "name", e.Name)
	l.TriggerFlush()
	e.Release()
	return true
}

// handleSegmentGap forwards the event immediately for stream
// continuity and, while buffering, also queues a copy for replay on
// the next drain.
func (l *Loop) handleSegmentGap(e *Event) bool {
	l.mu.Lock()
	if l.mode == ModeBuffering {
		cp := *e
		cp.OnRelease = nil
		l.q.enqueueControl(&cp)
	}
	l.mu.Unlock()
	return l.sink.PushEvent(e)
}

// drainLocked dequeues every item, applying output-side timeline
// effects, and returns them for emission once the lock is released.
func (l *Loop) drainLocked() []queueItem {
	items := make([]queueItem, 0, l.q.len())
	for {
		it, ok := l.q.dequeue()
		if !ok {
			break
		}
		items = append(items, it)
	}
	return items
}

// emit pushes drained items to the sink in order. It runs with the
// lock released so a sink that reenters the loop cannot deadlock.
func (l *Loop) emit(items []queueItem) {
	for _, it := range items {
		switch {
		case it.frame != nil:
			if err := l.sink.PushFrame(it.frame); err != nil {
				l.logger.Warn("sink rejected drained frame", "err", err)
			}
		case it.event != nil:
			l.sink.PushEvent(it.event)
		}
	}
}
