package prerecord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// PumpState represents the state of a pump.
type PumpState int

const (
	PumpStateIdle    PumpState = iota // Not started
	PumpStateRunning                  // Feeding the loop
	PumpStateStopped                  // Stopped
)

func (s PumpState) String() string {
	switch s {
	case PumpStateIdle:
		return "idle"
	case PumpStateRunning:
		return "running"
	case PumpStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// FrameSource produces encoded frames and the control events
// interleaved with them.
type FrameSource interface {
	// ReadItem returns the next frame or control event (blocking).
	// Exactly one of frame and event is non-nil; ownership of the
	// returned item passes to the caller. Returns io.EOF once the
	// source is exhausted.
	ReadItem(ctx context.Context) (*Frame, *Event, error)
}

// PumpStats provides pump statistics.
type PumpStats struct {
	FramesPushed   uint64
	EventsPushed   uint64
	FramesRejected uint64
	Errors         uint64
}

// PumpConfig configures a Pump.
type PumpConfig struct {
	Source  FrameSource // Frame and event source
	Loop    *Loop       // Destination loop
	OnError func(error) // Error callback
}

// Pump feeds a Loop from a FrameSource on its own goroutine: it is the
// producer half of a recorder, turning a blocking read interface into
// Push/PushEvent calls. Frames refused while the loop is flushing are
// released and counted; end of stream stops the pump after the EOS
// event has been handed to the loop.
type Pump struct {
	source FrameSource
	loop   *Loop

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats   PumpStats
	statsMu sync.Mutex

	onError func(error)
	mu      sync.Mutex
}

// NewPump creates a new pump.
func NewPump(config PumpConfig) (*Pump, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if config.Loop == nil {
		return nil, fmt.Errorf("loop is required")
	}

	p := &Pump{
		source:  config.Source,
		loop:    config.Loop,
		onError: config.OnError,
	}
	p.state.Store(int32(PumpStateIdle))

	return p, nil
}

// Start starts the pump.
func (p *Pump) Start() error {
	if PumpState(p.state.Load()) == PumpStateRunning {
		return fmt.Errorf("pump already running")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.state.Store(int32(PumpStateRunning))

	p.wg.Add(1)
	go p.processLoop()

	return nil
}

// Stop stops the pump and waits for the feeding goroutine to exit.
func (p *Pump) Stop() error {
	if PumpState(p.state.Load()) != PumpStateRunning {
		return nil
	}

	p.state.Store(int32(PumpStateStopped))
	p.cancel()
	p.wg.Wait()

	return nil
}

// State returns the current pump state.
func (p *Pump) State() PumpState {
	return PumpState(p.state.Load())
}

// Stats returns pump statistics.
func (p *Pump) Stats() PumpStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

func (p *Pump) processLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		frame, event, err := p.source.ReadItem(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil {
				return // Context cancelled
			}
			if errors.Is(err, io.EOF) {
				p.loop.PushEvent(NewEOSEvent())
				p.statsMu.Lock()
				p.stats.EventsPushed++
				p.statsMu.Unlock()
				p.state.Store(int32(PumpStateStopped))
				return
			}
			p.handleError(err)
			continue
		}

		if frame != nil {
			if err := p.loop.Push(frame); err != nil {
				// Refused frames stay with us; release and move on,
				// but a terminal refusal means the stream is over.
				frame.Release()
				p.statsMu.Lock()
				p.stats.FramesRejected++
				p.statsMu.Unlock()
				if errors.Is(err, ErrEOS) {
					p.state.Store(int32(PumpStateStopped))
					return
				}
				continue
			}
			p.statsMu.Lock()
			p.stats.FramesPushed++
			p.statsMu.Unlock()
			continue
		}

		if event != nil {
			stop := event.Type == EventEOS
			p.loop.PushEvent(event)
			p.statsMu.Lock()
			p.stats.EventsPushed++
			p.statsMu.Unlock()
			if stop {
				p.state.Store(int32(PumpStateStopped))
				return
			}
		}
	}
}

func (p *Pump) handleError(err error) {
	p.statsMu.Lock()
	p.stats.Errors++
	p.statsMu.Unlock()

	p.mu.Lock()
	cb := p.onError
	p.mu.Unlock()

	if cb != nil {
		go cb(err)
	}
}
