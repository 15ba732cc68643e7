// Package mock provides a test double for the stt package interfaces.
//
// Use Recognizer to script per-call transcripts and inspect the audio that
// was submitted for recognition.
//
// Example:
//
//	rec := &mock.Recognizer{Script: []mock.RecognizeResult{
//	    {Err: errors.New("boom")},
//	    {Text: "hello"},
//	}}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/provider/stt"
)

// RecognizeCall records a single invocation of Recognizer.Recognize.
type RecognizeCall struct {
	// PCM is a copy of the audio passed to Recognize.
	PCM []byte

	// LangCode is the language code passed to Recognize.
	LangCode string
}

// RecognizeResult scripts the outcome of a single Recognize call.
type RecognizeResult struct {
	// Text is the transcript to return.
	Text string

	// Err, if non-nil, is returned instead of Text.
	Err error
}

// Recognizer is a mock implementation of stt.Recognizer. Recognize consumes
// Script one entry per call and falls back to DefaultText once the script is
// exhausted.
type Recognizer struct {
	mu sync.Mutex

	// Script is consumed one entry per Recognize call.
	Script []RecognizeResult

	// DefaultText is returned once Script is exhausted.
	DefaultText string

	// Delay is waited before each call returns, simulating backend
	// latency. The wait is cut short when ctx is done.
	Delay time.Duration

	// RecognizeCalls records every call to Recognize in order.
	RecognizeCalls []RecognizeCall

	next int
}

// Recognize records the call and returns the next scripted result.
func (r *Recognizer) Recognize(ctx context.Context, pcm []byte, langCode string) (string, error) {
	r.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	r.RecognizeCalls = append(r.RecognizeCalls, RecognizeCall{PCM: cp, LangCode: langCode})
	var res RecognizeResult
	scripted := false
	if r.next < len(r.Script) {
		res = r.Script[r.next]
		r.next++
		scripted = true
	}
	delay := r.Delay
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if scripted {
		if res.Err != nil {
			return "", res.Err
		}
		return res.Text, nil
	}
	return r.DefaultText, nil
}

// Reset clears all recorded calls and rewinds the script. Thread-safe.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RecognizeCalls = nil
	r.next = 0
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)
