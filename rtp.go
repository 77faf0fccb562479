package prerecord

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// Re-export pion/rtp types for convenience
type (
	// RTPPacket is an alias to pion's rtp.Packet
	RTPPacket = rtp.Packet

	// RTPHeader is an alias to pion's rtp.Header
	RTPHeader = rtp.Header
)

// Default MTU for RTP packets (UDP safe)
const DefaultMTU = 1200

// VideoClockRate is the RTP clock rate used for video payloads.
const VideoClockRate = 90000

// defaultFrameDuration is assumed when a frame carries no duration and
// no timestamp delta is available.
const defaultFrameDuration = time.Second / 30

// RTPWriter is an interface for writing RTP packets. pion's
// webrtc.TrackLocalStaticRTP satisfies it.
type RTPWriter interface {
	// WriteRTP writes an RTP packet.
	WriteRTP(packet *RTPPacket) error
}

// RTPSinkStats provides sink statistics.
type RTPSinkStats struct {
	FramesWritten  uint64
	PacketsWritten uint64
	BytesWritten   uint64
	Errors         uint64
}

// RTPSinkConfig configures an RTPSink.
type RTPSinkConfig struct {
	// Writer receives the generated packets. Required.
	Writer RTPWriter

	// SSRC for outgoing packets. WebRTC tracks rewrite it per binding,
	// so 0 is fine there; raw transports should set one.
	SSRC uint32

	// PayloadType for outgoing packets. Defaults to 96.
	PayloadType uint8

	// MTU caps the packet size. Defaults to DefaultMTU.
	MTU int

	// ClockRate of the RTP timestamps. Defaults to VideoClockRate.
	ClockRate uint32

	// Payloader fragments frame payloads. Defaults to an H.264
	// payloader expecting Annex B input.
	Payloader rtp.Payloader
}

// RTPSink packetizes frames drained from a Loop into RTP. Frame
// timestamps drive the RTP clock: each frame advances it by its
// duration (or by the observed timestamp delta), and gap events skip
// the clock forward without emitting packets.
//
// RTPSink implements Sink.
type RTPSink struct {
	writer     RTPWriter
	packetizer rtp.Packetizer
	clockRate  uint32

	mu           sync.Mutex
	lastPTS      time.Duration
	lastPTSKnown bool

	stats   RTPSinkStats
	statsMu sync.Mutex
}

// NewRTPSink creates a new RTP sink.
func NewRTPSink(config RTPSinkConfig) (*RTPSink, error) {
	if config.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if config.PayloadType == 0 {
		config.PayloadType = 96
	}
	if config.MTU <= 0 {
		config.MTU = DefaultMTU
	}
	if config.ClockRate == 0 {
		config.ClockRate = VideoClockRate
	}
	if config.Payloader == nil {
		config.Payloader = &codecs.H264Payloader{}
	}

	return &RTPSink{
		writer: config.Writer,
		packetizer: rtp.NewPacketizer(
			uint16(config.MTU),
			config.PayloadType,
			config.SSRC,
			config.Payloader,
			rtp.NewRandomSequencer(),
			config.ClockRate,
		),
		clockRate: config.ClockRate,
	}, nil
}

// PushFrame packetizes one frame and writes the packets out. The frame
// is released once its payload has been consumed.
func (s *RTPSink) PushFrame(f *Frame) error {
	s.mu.Lock()
	samples := s.advanceTicks(f)
	packets := s.packetizer.Packetize(f.Data, samples)
	s.mu.Unlock()

	var err error
	written := 0
	for _, pkt := range packets {
		if werr := s.writer.WriteRTP(pkt); werr != nil {
			err = fmt.Errorf("write rtp: %w", werr)
			break
		}
		written++
	}

	s.statsMu.Lock()
	s.stats.FramesWritten++
	s.stats.PacketsWritten += uint64(written)
	for _, pkt := range packets[:written] {
		s.stats.BytesWritten += uint64(len(pkt.Payload))
	}
	if err != nil {
		s.stats.Errors++
	}
	s.statsMu.Unlock()

	f.Release()
	return err
}

// PushEvent consumes control events. Gaps advance the RTP clock;
// everything else carries no RTP representation and is dropped.
func (s *RTPSink) PushEvent(e *Event) bool {
	if e.Type == EventGap && validTime(e.Duration) {
		s.mu.Lock()
		s.packetizer.SkipSamples(durationToTicks(e.Duration, s.clockRate))
		s.mu.Unlock()
	}
	e.Release()
	return true
}

// Stats returns sink statistics.
func (s *RTPSink) Stats() RTPSinkStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// advanceTicks returns how far the RTP clock moves past f: the frame
// duration when known, otherwise the delta from the previous timestamp,
// otherwise a nominal 30 fps frame. Called with s.mu held.
func (s *RTPSink) advanceTicks(f *Frame) uint32 {
	d := f.Duration
	if !validTime(d) {
		if validTime(f.Timestamp) && s.lastPTSKnown && f.Timestamp > s.lastPTS {
			d = f.Timestamp - s.lastPTS
		} else {
			d = defaultFrameDuration
		}
	}
	if validTime(f.Timestamp) {
		s.lastPTS = f.Timestamp
		s.lastPTSKnown = true
	}
	return durationToTicks(d, s.clockRate)
}

func durationToTicks(d time.Duration, clockRate uint32) uint32 {
	return uint32(d * time.Duration(clockRate) / time.Second)
}
