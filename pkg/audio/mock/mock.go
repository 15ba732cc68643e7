// Package mock provides in-memory mock implementations of the
// [audio.Platform], [audio.CaptureStream], and [audio.PlaybackStream]
// interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	capture := mock.NewCaptureStream(16)
//	playback := &mock.PlaybackStream{}
//	platform := &mock.Platform{
//	    OpenCaptureResult:  capture,
//	    OpenPlaybackResult: playback,
//	}
//	stream, err := platform.OpenCapture(audio.CaptureConfig{})
//	capture.Push(frame)
//	capture.End()
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
)

// ─── CaptureStream ────────────────────────────────────────────────────────────

// CaptureStream is a mock implementation of [audio.CaptureStream]. Tests
// script its output by calling [CaptureStream.Push] with PCM frames and then
// either [CaptureStream.End] for a clean stop or [CaptureStream.Fail] to
// simulate device loss.
type CaptureStream struct {
	mu sync.Mutex

	frames chan []byte
	err    error
	closed bool

	// CloseError is returned by [CaptureStream.Close].
	CloseError error

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewCaptureStream returns a CaptureStream whose frame channel buffers up to
// buffer frames before Push blocks.
func NewCaptureStream(buffer int) *CaptureStream {
	return &CaptureStream{frames: make(chan []byte, buffer)}
}

// Frames implements [audio.CaptureStream].
func (s *CaptureStream) Frames() <-chan []byte {
	return s.frames
}

// Err implements [audio.CaptureStream]. Returns the error set by
// [CaptureStream.Fail], if any.
func (s *CaptureStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements [audio.CaptureStream]. Records the call, closes the frame
// channel, and returns CloseError. Safe to call more than once.
func (s *CaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return s.CloseError
}

// Push sends a copy of pcm on the frame channel. Blocks when the channel
// buffer is full. Panics if the stream has already ended.
func (s *CaptureStream) Push(pcm []byte) {
	frame := make([]byte, len(pcm))
	copy(frame, pcm)
	s.frames <- frame
}

// End closes the frame channel without an error, simulating a clean stop.
func (s *CaptureStream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
}

// Fail sets the stream error and closes the frame channel, simulating the
// capture device disappearing mid-run.
func (s *CaptureStream) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
}

// ─── PlaybackStream ───────────────────────────────────────────────────────────

// WriteCall records the arguments of a single [PlaybackStream.Write]
// invocation.
type WriteCall struct {
	// PCM is a copy of the audio passed to Write.
	PCM []byte
	// At is the time the call was made.
	At time.Time
}

// PlaybackStream is a mock implementation of [audio.PlaybackStream].
// Set the exported Error fields before use; inspect the call records after.
type PlaybackStream struct {
	mu sync.Mutex

	// WriteError is returned by Write. When set, Write returns 0 and the
	// audio is not recorded.
	WriteError error

	// WriteDelay is slept on each Write before returning, simulating the
	// pacing of a real device that consumes audio at the sample rate.
	WriteDelay time.Duration

	// DrainError is returned by Drain.
	DrainError error

	// CloseError is returned by Close.
	CloseError error

	// WriteCalls records all Write invocations.
	WriteCalls []WriteCall

	// CallCountDrain records how many times Drain was called.
	CallCountDrain int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Write implements [audio.PlaybackStream]. Records a copy of pcm with a
// timestamp and returns len(pcm), or WriteError when set.
func (s *PlaybackStream) Write(pcm []byte) (int, error) {
	s.mu.Lock()
	if s.WriteError != nil {
		err := s.WriteError
		s.mu.Unlock()
		return 0, err
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	s.WriteCalls = append(s.WriteCalls, WriteCall{PCM: buf, At: time.Now()})
	delay := s.WriteDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return len(pcm), nil
}

// Drain implements [audio.PlaybackStream]. Records the call and returns
// DrainError.
func (s *PlaybackStream) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountDrain++
	return s.DrainError
}

// Close implements [audio.PlaybackStream]. Records the call and returns
// CloseError.
func (s *PlaybackStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseError
}

// Written returns the concatenation of all PCM passed to Write, in call
// order.
func (s *PlaybackStream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, c := range s.WriteCalls {
		out = append(out, c.PCM...)
	}
	return out
}

// Reset clears all recorded calls.
func (s *PlaybackStream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WriteCalls = nil
	s.CallCountDrain = 0
	s.CallCountClose = 0
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// OpenCaptureCall records the arguments of a single [Platform.OpenCapture]
// invocation.
type OpenCaptureCall struct {
	// Config is the configuration passed to OpenCapture.
	Config audio.CaptureConfig
}

// OpenPlaybackCall records the arguments of a single [Platform.OpenPlayback]
// invocation.
type OpenPlaybackCall struct {
	// Config is the configuration passed to OpenPlayback.
	Config audio.PlaybackConfig
}

// Platform is a mock implementation of [audio.Platform].
// Set the exported Result and Error fields before use; inspect the call
// records after.
type Platform struct {
	mu sync.Mutex

	// InputDevicesResult is returned by InputDevices.
	InputDevicesResult []audio.Device

	// InputDevicesError is returned by InputDevices.
	InputDevicesError error

	// OutputDevicesResult is returned by OutputDevices.
	OutputDevicesResult []audio.Device

	// OutputDevicesError is returned by OutputDevices.
	OutputDevicesError error

	// OpenCaptureResult is returned by OpenCapture.
	OpenCaptureResult audio.CaptureStream

	// OpenCaptureQueue, when non-empty, is consumed one stream per
	// OpenCapture call before OpenCaptureResult is consulted. Use it when
	// the code under test opens more than one capture stream.
	OpenCaptureQueue []audio.CaptureStream

	// OpenCaptureError is returned by OpenCapture.
	OpenCaptureError error

	// OpenPlaybackResult is returned by OpenPlayback.
	OpenPlaybackResult audio.PlaybackStream

	// OpenPlaybackQueue, when non-empty, is consumed one stream per
	// OpenPlayback call before OpenPlaybackResult is consulted.
	OpenPlaybackQueue []audio.PlaybackStream

	// OpenPlaybackError is returned by OpenPlayback.
	OpenPlaybackError error

	// CloseError is returned by Close.
	CloseError error

	// OpenCaptureCalls records all OpenCapture invocations.
	OpenCaptureCalls []OpenCaptureCall

	// OpenPlaybackCalls records all OpenPlayback invocations.
	OpenPlaybackCalls []OpenPlaybackCall

	// CallCountInputDevices records how many times InputDevices was called.
	CallCountInputDevices int

	// CallCountOutputDevices records how many times OutputDevices was called.
	CallCountOutputDevices int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// InputDevices implements [audio.Platform].
func (p *Platform) InputDevices() ([]audio.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountInputDevices++
	return p.InputDevicesResult, p.InputDevicesError
}

// OutputDevices implements [audio.Platform].
func (p *Platform) OutputDevices() ([]audio.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountOutputDevices++
	return p.OutputDevicesResult, p.OutputDevicesError
}

// OpenCapture implements [audio.Platform]. Records the call and returns the
// next queued stream, or OpenCaptureResult / OpenCaptureError when the queue
// is empty.
func (p *Platform) OpenCapture(cfg audio.CaptureConfig) (audio.CaptureStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenCaptureCalls = append(p.OpenCaptureCalls, OpenCaptureCall{Config: cfg})
	if len(p.OpenCaptureQueue) > 0 {
		s := p.OpenCaptureQueue[0]
		p.OpenCaptureQueue = p.OpenCaptureQueue[1:]
		return s, nil
	}
	return p.OpenCaptureResult, p.OpenCaptureError
}

// OpenPlayback implements [audio.Platform]. Records the call and returns the
// next queued stream, or OpenPlaybackResult / OpenPlaybackError when the
// queue is empty.
func (p *Platform) OpenPlayback(cfg audio.PlaybackConfig) (audio.PlaybackStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenPlaybackCalls = append(p.OpenPlaybackCalls, OpenPlaybackCall{Config: cfg})
	if len(p.OpenPlaybackQueue) > 0 {
		s := p.OpenPlaybackQueue[0]
		p.OpenPlaybackQueue = p.OpenPlaybackQueue[1:]
		return s, nil
	}
	return p.OpenPlaybackResult, p.OpenPlaybackError
}

// Close implements [audio.Platform]. Records the call and returns CloseError.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountClose++
	return p.CloseError
}

// Interface conformance checks.
var (
	_ audio.Platform       = (*Platform)(nil)
	_ audio.CaptureStream  = (*CaptureStream)(nil)
	_ audio.PlaybackStream = (*PlaybackStream)(nil)
)
