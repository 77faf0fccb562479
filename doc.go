// Package prerecord implements a GOP-aware, time-bounded holding area
// for encoded video, so a capture trigger can retroactively keep the
// footage that preceded it.
//
// Key pieces include:
//   - Loop, the buffering core and its two-mode state machine
//   - Frame/Event, the units flowing through the loop
//   - GOP-boundary pruning under a duration budget with a two-GOP floor
//   - Pump, which feeds a Loop from a FrameSource on its own goroutine
//   - RTPSink, which packetizes drained footage for RTP transports
//   - SyntheticSource, a placeholder feed for demos and soak tests
//
// # Architecture
//
//	Buffering:    source -> Loop [queue <- pruner] -> (nothing emitted)
//	Flush:        trigger -> Loop drains queue FIFO -> Sink, mode becomes pass-through
//	Pass-through: source -> Loop -> Sink (queue bypassed)
//	Rearm:        trigger -> Loop empties itself, mode becomes buffering
//
// # Modes and Triggers
//
// A Loop starts in buffering mode, holding the most recent footage
// while evicting whole GOPs once the configured duration budget is
// exceeded. The flush trigger (a named custom downstream event, or
// TriggerFlush) replays everything held and switches to pass-through.
// The rearm trigger (the "prerecord-arm" upstream event, or Rearm)
// discards any residue and resumes buffering. End-of-stream behavior
// is selected by an EOSPolicy: drain, discard, or per-mode automatic.
//
// # Ownership
//
// Frames and events are single-owner handles. The producer owns an
// item until it is accepted by Push or PushEvent; from then on the
// loop either forwards it to the Sink (which takes over) or releases
// it exactly once via its OnRelease hook.
package prerecord
