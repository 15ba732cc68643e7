// Package lang holds the fixed catalog of languages the translator can work
// with. Each language is identified by its English display name (used in
// configuration and translation prompts) and its ISO-639-1 code (used on
// provider wire contracts).
package lang

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// Tag identifies a supported language.
type Tag struct {
	// Name is the English display name, e.g. "Urdu". This is the form the
	// translation prompt uses ("Translate to Urdu: ...").
	Name string

	// Code is the ISO-639-1 two-letter code, e.g. "ur". This is the form
	// recognition and synthesis requests use.
	Code string
}

// String returns "Name (code)", e.g. "Urdu (ur)".
func (t Tag) String() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Code)
}

// IsZero reports whether t is the zero Tag.
func (t Tag) IsZero() bool {
	return t.Name == "" && t.Code == ""
}

// catalog is the full set of supported languages. Order matters only for
// display; lookups are case-insensitive.
var catalog = []Tag{
	{Name: "English", Code: "en"},
	{Name: "Urdu", Code: "ur"},
	{Name: "Hindi", Code: "hi"},
	{Name: "Spanish", Code: "es"},
	{Name: "Japanese", Code: "ja"},
	{Name: "French", Code: "fr"},
	{Name: "German", Code: "de"},
	{Name: "Chinese", Code: "zh"},
	{Name: "Arabic", Code: "ar"},
	{Name: "Russian", Code: "ru"},
	{Name: "Portuguese", Code: "pt"},
	{Name: "Italian", Code: "it"},
	{Name: "Korean", Code: "ko"},
	{Name: "Turkish", Code: "tr"},
	{Name: "Dutch", Code: "nl"},
}

// All returns a copy of the full language catalog.
func All() []Tag {
	out := make([]Tag, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the display names of all supported languages, in catalog order.
func Names() []string {
	out := make([]string, len(catalog))
	for i, t := range catalog {
		out[i] = t.Name
	}
	return out
}

// ByName looks up a language by its display name. Matching is
// case-insensitive and ignores surrounding whitespace.
func ByName(name string) (Tag, bool) {
	name = strings.TrimSpace(name)
	for _, t := range catalog {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Tag{}, false
}

// ByCode looks up a language by its ISO-639-1 code. Matching is
// case-insensitive.
func ByCode(code string) (Tag, bool) {
	code = strings.TrimSpace(code)
	for _, t := range catalog {
		if strings.EqualFold(t.Code, code) {
			return t, true
		}
	}
	return Tag{}, false
}

// Parse resolves s as either a display name ("Urdu") or an ISO-639-1 code
// ("ur"). Unknown values produce an error that names the closest catalog
// entry so configuration typos are easy to spot.
func Parse(s string) (Tag, error) {
	if t, ok := ByName(s); ok {
		return t, nil
	}
	if t, ok := ByCode(s); ok {
		return t, nil
	}
	closest := Closest(s)
	return Tag{}, fmt.Errorf("lang: unknown language %q (closest match: %s); supported: %s",
		s, closest.Name, strings.Join(Names(), ", "))
}

// Closest returns the catalog entry whose display name has the smallest
// Levenshtein distance to name. Ties resolve to the earlier catalog entry.
func Closest(name string) Tag {
	name = strings.ToLower(strings.TrimSpace(name))
	best := catalog[0]
	bestDist := -1
	for _, t := range catalog {
		d := matchr.Levenshtein(name, strings.ToLower(t.Name))
		if bestDist < 0 || d < bestDist {
			best = t
			bestDist = d
		}
	}
	return best
}
