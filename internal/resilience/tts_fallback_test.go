package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/parley/pkg/provider/tts"
	ttsmock "github.com/MrWong99/parley/pkg/provider/tts/mock"
)

// drainStream collects all chunks from a stream and returns them with the
// terminal error.
func drainStream(t *testing.T, s *tts.Stream) ([][]byte, error) {
	t.Helper()
	var chunks [][]byte
	for chunk := range s.Chunks() {
		chunks = append(chunks, chunk)
	}
	return chunks, s.Err()
}

func TestSynthesizerFallback_PrimarySuccess(t *testing.T) {
	primary := &ttsmock.Synthesizer{
		DefaultChunks: [][]byte{[]byte("audio1"), []byte("audio2")},
	}
	secondary := &ttsmock.Synthesizer{
		DefaultChunks: [][]byte{[]byte("fallback-audio")},
	}

	fb := NewSynthesizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	stream, err := fb.Synthesize(context.Background(), "hello", tts.Voice{ID: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks, streamErr := drainStream(t, stream)
	if streamErr != nil {
		t.Fatalf("stream error: %v", streamErr)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if string(chunks[0]) != "audio1" {
		t.Fatalf("chunk[0] = %q, want audio1", string(chunks[0]))
	}
	if len(secondary.SynthesizeCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.SynthesizeCalls))
	}
}

func TestSynthesizerFallback_Failover(t *testing.T) {
	primary := &ttsmock.Synthesizer{
		Script: []ttsmock.SynthesizeResult{{StartErr: errors.New("primary down")}},
	}
	secondary := &ttsmock.Synthesizer{
		DefaultChunks: [][]byte{[]byte("fallback-audio")},
	}

	fb := NewSynthesizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	stream, err := fb.Synthesize(context.Background(), "hello", tts.Voice{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks, streamErr := drainStream(t, stream)
	if streamErr != nil {
		t.Fatalf("stream error: %v", streamErr)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if string(chunks[0]) != "fallback-audio" {
		t.Fatalf("chunk[0] = %q, want fallback-audio", string(chunks[0]))
	}
}

func TestSynthesizerFallback_AllFail(t *testing.T) {
	primary := &ttsmock.Synthesizer{
		Script: []ttsmock.SynthesizeResult{{StartErr: errors.New("primary down")}},
	}
	secondary := &ttsmock.Synthesizer{
		Script: []ttsmock.SynthesizeResult{{StartErr: errors.New("secondary down")}},
	}

	fb := NewSynthesizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Synthesize(context.Background(), "hello", tts.Voice{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
