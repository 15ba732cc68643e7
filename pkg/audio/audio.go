// Package audio defines the interfaces and types for local audio device
// access and PCM handling.
//
// The two primary abstractions are:
//
//   - [Platform] — enumerates input/output devices and opens streams on them.
//   - [CaptureStream] / [PlaybackStream] — an open device delivering or
//     accepting fixed-format PCM.
//
// The whole pipeline runs on one audio format: 16 kHz mono signed 16-bit
// little-endian PCM, moved in 30 ms frames of [FrameBytes] bytes. Capture
// streams emit exactly that frame size; playback streams accept arbitrary
// chunk sizes and pace the caller against the device.
//
// Implementations of these interfaces are provided by backend packages
// (audio/miniaudio for real devices, audio/mock for tests). This package
// lives under pkg/ because external code is expected to implement [Platform].
package audio

import (
	"errors"
	"time"
)

const (
	// SampleRate is the pipeline-wide sample rate in Hz.
	SampleRate = 16000

	// Channels is the pipeline-wide channel count. Everything is mono.
	Channels = 1

	// BytesPerSample is the width of one s16le sample.
	BytesPerSample = 2

	// FrameSamples is the number of samples in one capture frame (30 ms).
	FrameSamples = 480

	// FrameBytes is the byte length of one capture frame.
	FrameBytes = FrameSamples * BytesPerSample

	// FrameDuration is the wall-clock duration of one capture frame.
	FrameDuration = 30 * time.Millisecond
)

// ErrDeviceUnavailable indicates that an audio device could not be opened or
// disappeared while a stream was running. It is fatal for the engine that
// owns the device.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// CaptureConfig configures a new capture stream.
type CaptureConfig struct {
	// Device selects the input device. Nil selects the system default.
	Device *Device

	// BufferFrames is the capacity of the Frames channel. When the consumer
	// falls behind, frames beyond this capacity are dropped by the driver
	// bridge and counted as overruns. Zero means 256.
	BufferFrames int
}

// PlaybackConfig configures a new playback stream.
type PlaybackConfig struct {
	// Device selects the output device. Nil selects the system default.
	Device *Device

	// BlockSamples is the device period size in samples. Zero means 1024.
	BlockSamples int
}

// CaptureStream is an open input device delivering fixed-size PCM frames.
//
// Implementations must be safe for concurrent use.
type CaptureStream interface {
	// Frames returns the channel of captured frames. Every element is exactly
	// [FrameBytes] bytes and owned by the receiver. The channel is closed when
	// the stream is closed or the device fails; after it closes, Err reports
	// the cause.
	Frames() <-chan []byte

	// Err returns the terminal error of the stream, or nil when the stream
	// was closed deliberately. A device that disappeared mid-run reports an
	// error wrapping [ErrDeviceUnavailable]. Err must only be consulted after
	// the Frames channel has closed.
	Err() error

	// Close stops capture and closes the Frames channel. Safe to call more
	// than once; subsequent calls return nil.
	Close() error
}

// PlaybackStream is an open output device accepting PCM writes.
//
// Implementations must be safe for concurrent use.
type PlaybackStream interface {
	// Write queues pcm for playback and blocks while the device buffer is
	// full, pacing the caller against real time. It returns the number of
	// bytes consumed.
	Write(pcm []byte) (int, error)

	// Drain blocks until all previously written audio has been handed to the
	// device. Returns immediately when the buffer is already empty.
	Drain() error

	// Close stops playback, discarding any buffered audio. Safe to call more
	// than once; subsequent calls return nil.
	Close() error
}

// Platform is the entry point for an audio backend. Implementations wrap a
// host audio API (miniaudio, test doubles, …) and expose uniform device
// enumeration and stream lifecycles.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// InputDevices lists the capture devices currently visible to the host.
	InputDevices() ([]Device, error)

	// OutputDevices lists the playback devices currently visible to the host.
	OutputDevices() ([]Device, error)

	// OpenCapture opens an input device and starts delivering frames.
	// Returns an error wrapping [ErrDeviceUnavailable] when the device cannot
	// be opened.
	OpenCapture(cfg CaptureConfig) (CaptureStream, error)

	// OpenPlayback opens an output device. Returns an error wrapping
	// [ErrDeviceUnavailable] when the device cannot be opened.
	OpenPlayback(cfg PlaybackConfig) (PlaybackStream, error)

	// Close releases the backend. All streams must be closed first.
	Close() error
}
