package transcript

import (
	"fmt"
	"regexp"
)

// Status lines are plain strings so any sink (console, log file, captions
// hub) can display them as-is. Structured consumers recover the fields
// with [ParsePair].

// FormatPair renders the per-utterance transcript line published after a
// successful translation.
func FormatPair(engine, original, translated string) string {
	return fmt.Sprintf("[%s] Original: %s -> Translated: %s", engine, original, translated)
}

// FormatGlitch renders the transient-failure status line. The wording
// signals to the user that the conversation continues on the next utterance.
func FormatGlitch(err error) string {
	return fmt.Sprintf("⚠️ Connection Glitch: %v. Retrying...", err)
}

// Pair is a parsed transcript status line.
type Pair struct {
	Engine     string
	Original   string
	Translated string
}

var pairRe = regexp.MustCompile(`^\[(SENDER|RECEIVER)\] Original: (.*?) -> Translated: (.*)$`)

// ParsePair extracts the fields of a [FormatPair] line. ok is false for any
// other status line, such as glitch messages or startup notices.
func ParsePair(line string) (Pair, bool) {
	m := pairRe.FindStringSubmatch(line)
	if m == nil {
		return Pair{}, false
	}
	return Pair{Engine: m[1], Original: m[2], Translated: m[3]}, true
}
