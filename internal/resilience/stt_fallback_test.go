package resilience

import (
	"context"
	"errors"
	"testing"

	sttmock "github.com/MrWong99/parley/pkg/provider/stt/mock"
)

func TestRecognizerFallback_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Recognizer{DefaultText: "hello world"}
	secondary := &sttmock.Recognizer{DefaultText: "from secondary"}

	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	text, err := fb.Recognize(context.Background(), []byte{1, 2, 3, 4}, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("text = %q, want hello world", text)
	}
	if len(primary.RecognizeCalls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.RecognizeCalls))
	}
	if len(secondary.RecognizeCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.RecognizeCalls))
	}
}

func TestRecognizerFallback_Failover(t *testing.T) {
	primary := &sttmock.Recognizer{
		Script: []sttmock.RecognizeResult{{Err: errors.New("primary down")}},
	}
	secondary := &sttmock.Recognizer{DefaultText: "from secondary"}

	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	text, err := fb.Recognize(context.Background(), []byte{1, 2}, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from secondary" {
		t.Fatalf("text = %q, want from secondary", text)
	}
}

func TestRecognizerFallback_AllFail(t *testing.T) {
	primary := &sttmock.Recognizer{
		Script: []sttmock.RecognizeResult{{Err: errors.New("primary down")}},
	}
	secondary := &sttmock.Recognizer{
		Script: []sttmock.RecognizeResult{{Err: errors.New("secondary down")}},
	}

	fb := NewRecognizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Recognize(context.Background(), []byte{1, 2}, "en")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
