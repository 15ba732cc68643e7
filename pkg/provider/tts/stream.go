package tts

import (
	"context"
	"sync"
)

// Stream delivers synthesized PCM as it is rendered.
//
// Consumers range over Chunks and call Err once the channel is closed to
// learn whether the transfer completed or broke off mid-clip. Producers
// (Synthesizer implementations) feed it with Send and finish it with Close.
type Stream struct {
	ch chan []byte

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// NewStream creates a Stream whose chunk channel buffers up to buffer chunks.
func NewStream(buffer int) *Stream {
	return &Stream{ch: make(chan []byte, buffer)}
}

// Chunks returns the channel PCM chunks arrive on. It is closed when the
// clip is complete, the context given to Synthesize is canceled, or the
// transfer fails.
func (s *Stream) Chunks() <-chan []byte {
	return s.ch
}

// Err reports why the stream ended. It returns nil for a complete clip and
// the transfer error otherwise. Only valid after Chunks is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Send delivers one chunk to the consumer, blocking while the channel is
// full. It returns false when ctx is canceled before the chunk is accepted.
// Send must not be called after Close.
func (s *Stream) Send(ctx context.Context, pcm []byte) bool {
	select {
	case s.ch <- pcm:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream, recording err as its terminal state. A nil err
// marks the clip complete. Calls after the first are no-ops.
func (s *Stream) Close(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
	})
}
