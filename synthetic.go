package prerecord

import (
	"context"
	"io"
	"sync"
	"time"
)

// SyntheticConfig configures a synthetic frame source.
type SyntheticConfig struct {
	FPS        int  // Frames per second (default: 30)
	GOPLength  int  // Frames per GOP (default: 30)
	FrameBytes int  // Delta frame payload size (default: 4096)
	KeyBytes   int  // Keyframe payload size (default: 16384)
	Frames     int  // Total frames before EOF (default: 0, unbounded)
	Realtime   bool // Pace reads at the configured frame rate
}

// SyntheticSource generates a deterministic H.264 shaped frame sequence
// without an encoder: single-NALU Annex B payloads filled with noise, a
// keyframe opening every GOP, and timestamps advancing at the configured
// rate. It stands in for a camera or ingest feed in tests and demos.
//
// SyntheticSource implements FrameSource.
type SyntheticSource struct {
	config        SyntheticConfig
	frameDuration time.Duration

	mu     sync.Mutex
	count  int
	closed bool

	// Random state for payload noise
	rngState uint64

	ticker *time.Ticker
}

// NewSyntheticSource creates a new synthetic frame source.
func NewSyntheticSource(config SyntheticConfig) *SyntheticSource {
	// Apply defaults
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.GOPLength <= 0 {
		config.GOPLength = 30
	}
	if config.FrameBytes <= 0 {
		config.FrameBytes = 4096
	}
	if config.KeyBytes <= 0 {
		config.KeyBytes = 16384
	}

	s := &SyntheticSource{
		config:        config,
		frameDuration: time.Second / time.Duration(config.FPS),
		rngState:      uint64(time.Now().UnixNano()) | 1,
	}
	if config.Realtime {
		s.ticker = time.NewTicker(s.frameDuration)
	}
	return s
}

// ReadItem returns the next generated frame, blocking for pacing when
// the source runs in realtime mode. After the configured frame budget
// or a Close it reports io.EOF.
func (s *SyntheticSource) ReadItem(ctx context.Context) (*Frame, *Event, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil, io.EOF
	}

	if s.ticker != nil {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-s.ticker.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || (s.config.Frames > 0 && s.count >= s.config.Frames) {
		return nil, nil, io.EOF
	}

	frameType := FrameTypeDelta
	nalType := byte(0x41)
	size := s.config.FrameBytes
	if s.count%s.config.GOPLength == 0 {
		frameType = FrameTypeKey
		nalType = 0x65
		size = s.config.KeyBytes
	}

	data := make([]byte, 5+size)
	data[3] = 0x01
	data[4] = nalType
	s.fillNoise(data[5:])

	f := &Frame{
		Data:      data,
		FrameType: frameType,
		Timestamp: time.Duration(s.count) * s.frameDuration,
		Duration:  s.frameDuration,
	}
	s.count++
	return f, nil, nil
}

// Close stops the source; subsequent reads report io.EOF.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}

// fillNoise writes xorshift64 noise, skipping zero bytes so the payload
// cannot alias an Annex B start code.
func (s *SyntheticSource) fillNoise(buf []byte) {
	for i := range buf {
		s.rngState ^= s.rngState << 13
		s.rngState ^= s.rngState >> 7
		s.rngState ^= s.rngState << 17
		b := byte(s.rngState)
		if b == 0 {
			b = 0xAA
		}
		buf[i] = b
	}
}
