// Package mt defines the Translator interface for machine translation
// backends, along with the prompt contract shared by the LLM-backed
// implementations.
//
// Translation happens one utterance at a time. The pipeline feeds each
// recognized utterance through a Translator before synthesis, so calls sit
// on the latency-critical path; implementations should use fast models and
// keep the exchange to a single round trip.
//
// Implementations must be safe for concurrent use. A single Translator is
// typically shared by both directions of a conversation.
package mt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Translator renders text into another language.
type Translator interface {
	// Translate renders text into targetLang, given as the English name of
	// the target language ("Urdu", "Spanish"). The source language is not
	// declared; LLM backends infer it from the text itself.
	//
	// Implementations degrade softly: when the backend replies in an
	// unexpected shape they return the source text unchanged rather than
	// an error, so the conversation keeps flowing.
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// The prompt contract below is shared by every LLM-backed Translator so
// that primary and fallback tiers behave identically and their replies can
// be parsed the same way.

// SystemPrompt instructs the model to reply with nothing but the
// translation object.
const SystemPrompt = `You are a professional translator. Translate the user's text accurately, preserving tone and register. Respond with only a JSON object of the form {"translation": "<translated text>"} and nothing else. Do not add explanations, notes, or romanization.`

// Temperature is the sampling temperature implementations request. Low,
// since faithful translation wants near-deterministic output.
const Temperature = 0.1

// UserPrompt formats the per-utterance request.
func UserPrompt(targetLang, text string) string {
	return fmt.Sprintf("Translate to %s: %s", targetLang, text)
}

// ParseResponse extracts the translated text from a model reply. Models
// occasionally wrap the object in markdown code fences despite the system
// prompt; fences are stripped before decoding. Returns false when the reply
// does not decode to the expected object or the translation field is empty.
func ParseResponse(content string) (string, bool) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var out struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return "", false
	}
	if out.Translation == "" {
		return "", false
	}
	return out.Translation, true
}
