// Package mock provides a mock implementation of the tts interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/provider/tts"
)

// SynthesizeCall records a single call to Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice tts.Voice
}

// SynthesizeResult is one scripted synthesis outcome.
type SynthesizeResult struct {
	// Chunks are emitted on the stream in order.
	Chunks [][]byte

	// StartErr, when set, is returned from Synthesize itself and no stream
	// is produced.
	StartErr error

	// StreamErr becomes the stream's terminal state after Chunks are sent.
	StreamErr error
}

// Synthesizer is a mock tts.Synthesizer. Results are served from Script one
// per call; once the script runs out, DefaultChunks are streamed.
type Synthesizer struct {
	mu sync.Mutex

	// Script is consumed one entry per Synthesize call.
	Script []SynthesizeResult

	// DefaultChunks are streamed after Script is exhausted. Nil produces an
	// immediately complete, empty stream.
	DefaultChunks [][]byte

	// ChunkDelay, when set, pauses before each chunk. Useful for exercising
	// time-to-first-byte measurement and slow-consumer paths.
	ChunkDelay time.Duration

	// SynthesizeCalls records every invocation in order.
	SynthesizeCalls []SynthesizeCall

	next int
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice tts.Voice) (*tts.Stream, error) {
	s.mu.Lock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	var res SynthesizeResult
	if s.next < len(s.Script) {
		res = s.Script[s.next]
		s.next++
	} else {
		res = SynthesizeResult{Chunks: s.DefaultChunks}
	}
	delay := s.ChunkDelay
	s.mu.Unlock()

	if res.StartErr != nil {
		return nil, res.StartErr
	}

	stream := tts.NewStream(len(res.Chunks) + 1)
	go func() {
		for _, chunk := range res.Chunks {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					stream.Close(ctx.Err())
					return
				}
			}
			c := make([]byte, len(chunk))
			copy(c, chunk)
			if !stream.Send(ctx, c) {
				stream.Close(ctx.Err())
				return
			}
		}
		stream.Close(res.StreamErr)
	}()
	return stream, nil
}

// Reset clears recorded calls and rewinds the script.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = nil
	s.next = 0
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
