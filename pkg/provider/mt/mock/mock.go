// Package mock provides a mock implementation of the mt interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/provider/mt"
)

// TranslateCall records a single call to Translate.
type TranslateCall struct {
	Text       string
	TargetLang string
}

// TranslateResult is one scripted reply.
type TranslateResult struct {
	Text string
	Err  error
}

// Translator is a mock mt.Translator. Results are served from Script one per
// call; once the script runs out, DefaultText is returned, or the source text
// echoed back when DefaultText is empty.
type Translator struct {
	mu sync.Mutex

	// Script is consumed one entry per Translate call.
	Script []TranslateResult

	// DefaultText is returned after Script is exhausted. Empty means echo
	// the source text, which makes the mock a no-op translator.
	DefaultText string

	// Delay, when set, makes each call block for the given duration or
	// until the context is canceled.
	Delay time.Duration

	// TranslateCalls records every invocation in order.
	TranslateCalls []TranslateCall

	next int
}

// Translate implements mt.Translator.
func (t *Translator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	t.mu.Lock()
	t.TranslateCalls = append(t.TranslateCalls, TranslateCall{Text: text, TargetLang: targetLang})
	var res *TranslateResult
	if t.next < len(t.Script) {
		res = &t.Script[t.next]
		t.next++
	}
	delay := t.Delay
	defaultText := t.DefaultText
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if res != nil {
		return res.Text, res.Err
	}
	if defaultText != "" {
		return defaultText, nil
	}
	return text, nil
}

// Reset clears recorded calls and rewinds the script.
func (t *Translator) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranslateCalls = nil
	t.next = 0
}

var _ mt.Translator = (*Translator)(nil)
