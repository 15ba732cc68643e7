// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that detectors are created with the expected Config.
// Use Detector to script per-frame classifications and inspect the frames
// that were submitted for processing.
//
// Example:
//
//	det := &mock.Detector{Script: []mock.FrameResult{{Speech: true}, {Speech: false}}}
//	eng := &mock.Engine{Detector: det}
//	d, _ := eng.NewDetector(cfg)
package mock

import (
	"sync"

	"github.com/MrWong99/parley/pkg/provider/vad"
)

// NewDetectorCall records a single invocation of Engine.NewDetector.
type NewDetectorCall struct {
	// Cfg is the Config passed to NewDetector.
	Cfg vad.Config
}

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Detector is returned by NewDetector. If nil, NewDetector returns a
	// new default Detector.
	Detector vad.Detector

	// NewDetectorErr, if non-nil, is returned as the error from NewDetector.
	NewDetectorErr error

	// NewDetectorCalls records every call to NewDetector in order.
	NewDetectorCalls []NewDetectorCall
}

// NewDetector records the call and returns Detector, NewDetectorErr.
func (e *Engine) NewDetector(cfg vad.Config) (vad.Detector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewDetectorCalls = append(e.NewDetectorCalls, NewDetectorCall{Cfg: cfg})
	if e.NewDetectorErr != nil {
		return nil, e.NewDetectorErr
	}
	if e.Detector != nil {
		return e.Detector, nil
	}
	return &Detector{}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewDetectorCalls = nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// FrameResult scripts the outcome of a single ProcessFrame call.
type FrameResult struct {
	// Speech is the classification to return.
	Speech bool

	// Err, if non-nil, is returned alongside a false classification.
	Err error
}

// ProcessFrameCall records a single invocation of Detector.ProcessFrame.
type ProcessFrameCall struct {
	// Frame is a copy of the bytes passed to ProcessFrame.
	Frame []byte
}

// Detector is a mock implementation of vad.Detector. ProcessFrame consumes
// Script one entry per call and falls back to DefaultSpeech once the script
// is exhausted.
type Detector struct {
	mu sync.Mutex

	// Script is consumed one entry per ProcessFrame call.
	Script []FrameResult

	// DefaultSpeech is returned by ProcessFrame after Script is exhausted.
	DefaultSpeech bool

	// --- Call records ---

	// ProcessFrameCalls records every call to ProcessFrame in order.
	ProcessFrameCalls []ProcessFrameCall

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	next int
}

// ProcessFrame records the call and returns the next scripted result.
func (d *Detector) ProcessFrame(frame []byte) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	d.ProcessFrameCalls = append(d.ProcessFrameCalls, ProcessFrameCall{Frame: cp})
	if d.next < len(d.Script) {
		r := d.Script[d.next]
		d.next++
		if r.Err != nil {
			return false, r.Err
		}
		return r.Speech, nil
	}
	return d.DefaultSpeech, nil
}

// Reset records the call by incrementing ResetCallCount.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCallCount++
}

// ResetCalls clears all recorded call history and rewinds the script.
// Thread-safe.
func (d *Detector) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ProcessFrameCalls = nil
	d.ResetCallCount = 0
	d.next = 0
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)
