package resilience

import (
	"context"

	"github.com/MrWong99/parley/pkg/provider/mt"
)

// TranslatorFallback implements [mt.Translator] with automatic failover
// across multiple translation backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
//
// Note that translators degrade softly on malformed model replies (they
// return the source text rather than an error), so failover only engages on
// transport and API errors.
type TranslatorFallback struct {
	group *FallbackGroup[mt.Translator]
}

// Compile-time interface assertion.
var _ mt.Translator = (*TranslatorFallback)(nil)

// NewTranslatorFallback creates a [TranslatorFallback] with primary as the
// preferred backend.
func NewTranslatorFallback(primary mt.Translator, primaryName string, cfg FallbackConfig) *TranslatorFallback {
	return &TranslatorFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional translator as a fallback.
func (f *TranslatorFallback) AddFallback(name string, tr mt.Translator) {
	f.group.AddFallback(name, tr)
}

// Translate translates text using the first healthy backend.
func (f *TranslatorFallback) Translate(ctx context.Context, text, targetLang string) (string, error) {
	return ExecuteWithResult(f.group, func(tr mt.Translator) (string, error) {
		return tr.Translate(ctx, text, targetLang)
	})
}
