// Package miniaudio implements [audio.Platform] on top of the miniaudio
// library via the malgo bindings.
//
// miniaudio delivers and consumes samples through callbacks on a realtime
// driver thread. Those callbacks must never block, so each stream bridges
// the callback to the channel-based pipeline through a [ring.Buffer]: the
// capture callback drops frames when the ring is full, and the playback
// callback substitutes silence when it runs dry. The driver converts sample
// format and rate natively, so both directions are opened directly at the
// pipeline format of 16 kHz mono signed 16-bit.
package miniaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/ring"
)

const (
	// periodMs is the driver callback period. Smaller periods lower
	// latency at the cost of more frequent callbacks.
	periodMs = 10

	// defaultBufferFrames is the capture ring and channel depth used when
	// the caller leaves [audio.CaptureConfig.BufferFrames] zero.
	defaultBufferFrames = 256

	// defaultBlockSamples is the playback block size used when the caller
	// leaves [audio.PlaybackConfig.BlockSamples] zero.
	defaultBlockSamples = 1024

	// playbackRingBlocks sizes the playback ring as a multiple of the
	// block size. The ring is the cushion between blocking Write calls
	// and the driver callback; once it fills, Write paces the caller at
	// the playback rate.
	playbackRingBlocks = 4
)

// Option configures a Platform.
type Option func(*Platform)

// WithBackends restricts miniaudio to specific backends (e.g.
// [malgo.BackendAlsa]). The default lets miniaudio pick per platform.
func WithBackends(backends []malgo.Backend) Option {
	return func(p *Platform) {
		p.backends = backends
	}
}

// Platform implements [audio.Platform] using miniaudio.
type Platform struct {
	ctx      *malgo.AllocatedContext
	backends []malgo.Backend

	closeOnce sync.Once
	closeErr  error
}

// New initializes a miniaudio context. The caller must Close the returned
// Platform after all streams opened from it are closed.
func New(opts ...Option) (*Platform, error) {
	p := &Platform{}
	for _, o := range opts {
		o(p)
	}

	ctx, err := malgo.InitContext(p.backends, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio: " + strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init context: %w", err)
	}
	p.ctx = ctx
	return p, nil
}

// InputDevices implements [audio.Platform].
func (p *Platform) InputDevices() ([]audio.Device, error) {
	return p.devices(malgo.Capture)
}

// OutputDevices implements [audio.Platform].
func (p *Platform) OutputDevices() ([]audio.Device, error) {
	return p.devices(malgo.Playback)
}

func (p *Platform) devices(kind malgo.DeviceType) ([]audio.Device, error) {
	infos, err := p.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: enumerate devices: %w", err)
	}
	out := make([]audio.Device, len(infos))
	for i := range infos {
		out[i] = audio.Device{
			Index:   i,
			Name:    infos[i].Name(),
			Default: infos[i].IsDefault != 0,
		}
	}
	return out, nil
}

// lookupID maps a resolved device back to its driver ID. Names are matched
// before indexes since enumeration order can shift between scans.
func (p *Platform) lookupID(kind malgo.DeviceType, want *audio.Device) (*malgo.DeviceID, error) {
	infos, err := p.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: enumerate devices: %w", err)
	}
	for i := range infos {
		if infos[i].Name() == want.Name {
			id := infos[i].ID
			return &id, nil
		}
	}
	if want.Index >= 0 && want.Index < len(infos) {
		id := infos[want.Index].ID
		return &id, nil
	}
	return nil, fmt.Errorf("miniaudio: device %q: %w", want.Label(), audio.ErrDeviceUnavailable)
}

// OpenCapture implements [audio.Platform]. The stream re-chunks whatever
// period size the driver delivers into exact [audio.FrameBytes] frames.
func (p *Platform) OpenCapture(cfg audio.CaptureConfig) (audio.CaptureStream, error) {
	bufferFrames := cfg.BufferFrames
	if bufferFrames <= 0 {
		bufferFrames = defaultBufferFrames
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = audio.Channels
	deviceConfig.SampleRate = audio.SampleRate
	deviceConfig.PeriodSizeInMilliseconds = periodMs

	// Pin any DeviceID pointer handed to cgo. It only needs to live
	// through the InitDevice call.
	var pinner runtime.Pinner
	defer pinner.Unpin()
	if cfg.Device != nil {
		id, err := p.lookupID(malgo.Capture, cfg.Device)
		if err != nil {
			return nil, err
		}
		pinner.Pin(id)
		deviceConfig.Capture.DeviceID = unsafe.Pointer(id)
	}

	s := &captureStream{
		ring:   ring.New(bufferFrames * audio.FrameBytes),
		frames: make(chan []byte, bufferFrames),
		done:   make(chan struct{}),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, _ uint32) {
			if len(pInput) == 0 {
				return
			}
			if n := s.ring.TryWrite(pInput); n < len(pInput) {
				s.overruns.Add(1)
			}
		},
		Stop: func() {
			if s.closing.Load() {
				return
			}
			s.fail(fmt.Errorf("miniaudio: capture device stopped: %w", audio.ErrDeviceUnavailable))
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: open capture device: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("miniaudio: start capture device: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	s.wg.Add(1)
	go s.pump()
	return s, nil
}

// OpenPlayback implements [audio.Platform].
func (p *Platform) OpenPlayback(cfg audio.PlaybackConfig) (audio.PlaybackStream, error) {
	blockSamples := cfg.BlockSamples
	if blockSamples <= 0 {
		blockSamples = defaultBlockSamples
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = audio.Channels
	deviceConfig.SampleRate = audio.SampleRate
	deviceConfig.PeriodSizeInMilliseconds = periodMs

	var pinner runtime.Pinner
	defer pinner.Unpin()
	if cfg.Device != nil {
		id, err := p.lookupID(malgo.Playback, cfg.Device)
		if err != nil {
			return nil, err
		}
		pinner.Pin(id)
		deviceConfig.Playback.DeviceID = unsafe.Pointer(id)
	}

	s := &playbackStream{
		ring: ring.New(blockSamples * audio.BytesPerSample * playbackRingBlocks),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) {
			n := s.ring.TryRead(pOutput)
			for i := n; i < len(pOutput); i++ {
				pOutput[i] = 0
			}
		},
		Stop: func() {
			if s.closing.Load() {
				return
			}
			s.setErr(fmt.Errorf("miniaudio: playback device stopped: %w", audio.ErrDeviceUnavailable))
			s.ring.Close()
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: open playback device: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("miniaudio: start playback device: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	return s, nil
}

// Close implements [audio.Platform]. Streams opened from this Platform must
// be closed first.
func (p *Platform) Close() error {
	p.closeOnce.Do(func() {
		if err := p.ctx.Uninit(); err != nil {
			p.closeErr = fmt.Errorf("miniaudio: uninit context: %w", err)
		}
		p.ctx.Free()
	})
	return p.closeErr
}

// ─── Capture stream ───────────────────────────────────────────────────────────

type captureStream struct {
	device *malgo.Device
	ring   *ring.Buffer
	frames chan []byte
	done   chan struct{}

	overruns atomic.Uint64
	closing  atomic.Bool
	wg       sync.WaitGroup

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closeErr  error
}

// pump re-chunks the callback-filled ring into exact frame-sized slices.
// Runs until the ring closes, then flushes whole frames and closes the
// frame channel.
func (s *captureStream) pump() {
	defer s.wg.Done()
	defer close(s.frames)
	for {
		frame := make([]byte, audio.FrameBytes)
		if n := s.ring.Read(frame); n < audio.FrameBytes {
			return
		}
		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

func (s *captureStream) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.ring.Close()
}

// Frames implements [audio.CaptureStream].
func (s *captureStream) Frames() <-chan []byte {
	return s.frames
}

// Err implements [audio.CaptureStream].
func (s *captureStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Overruns returns the number of driver periods that were at least partially
// dropped because the pipeline fell behind.
func (s *captureStream) Overruns() uint64 {
	return s.overruns.Load()
}

// Close implements [audio.CaptureStream]. Stops the device, unblocks the
// pump, and waits for the frame channel to close.
func (s *captureStream) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		if err := s.device.Stop(); err != nil && s.Err() == nil {
			s.closeErr = fmt.Errorf("miniaudio: stop capture device: %w", err)
		}
		s.device.Uninit()
		s.ring.Close()
		close(s.done)
		s.wg.Wait()
	})
	return s.closeErr
}

// ─── Playback stream ──────────────────────────────────────────────────────────

type playbackStream struct {
	device *malgo.Device
	ring   *ring.Buffer

	closing atomic.Bool

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closeErr  error
}

func (s *playbackStream) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *playbackStream) getErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Write implements [audio.PlaybackStream]. Blocks while the ring is full,
// pacing the caller at the device playback rate.
func (s *playbackStream) Write(pcm []byte) (int, error) {
	n := s.ring.Write(pcm)
	if n < len(pcm) {
		if err := s.getErr(); err != nil {
			return n, err
		}
		return n, errors.New("miniaudio: playback stream closed")
	}
	return n, nil
}

// Drain implements [audio.PlaybackStream]. Blocks until the driver callback
// has consumed all queued audio.
func (s *playbackStream) Drain() error {
	s.ring.WaitEmpty()
	return s.getErr()
}

// Close implements [audio.PlaybackStream]. Discards queued audio and stops
// the device; call Drain first to let it finish playing.
func (s *playbackStream) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.ring.Close()
		if err := s.device.Stop(); err != nil && s.getErr() == nil {
			s.closeErr = fmt.Errorf("miniaudio: stop playback device: %w", err)
		}
		s.device.Uninit()
	})
	return s.closeErr
}

// Interface conformance checks.
var (
	_ audio.Platform       = (*Platform)(nil)
	_ audio.CaptureStream  = (*captureStream)(nil)
	_ audio.PlaybackStream = (*playbackStream)(nil)
)
