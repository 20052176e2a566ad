package lang

import (
	"strings"
	"unicode"
)

// Tag is the closed set of languages the companion adapts to.
type Tag string

const (
	English = Tag("en")
	Hindi   = Tag("hi")
	// Mixed covers Hinglish and anything the heuristic cannot place.
	Mixed = Tag("mixed")
)

func ParseTag(s string) Tag {
	switch Tag(s) {
	case English:
		return English
	case Hindi:
		return Hindi
	default:
		return Mixed
	}
}

// Romanized Hindi words that show up in transliterated chat.
var hindiKeywords = map[string]struct{}{
	"kya": {}, "kaise": {}, "hai": {}, "hain": {}, "ho": {}, "nahi": {},
	"haan": {}, "tum": {}, "mera": {}, "tera": {}, "kyu": {}, "kyon": {},
	"batao": {}, "pyaar": {}, "yaar": {}, "acha": {}, "theek": {},
	"samjha": {}, "kar": {}, "kuch": {}, "kal": {}, "abhi": {},
	"chalo": {}, "bolo": {},
}

var englishKeywords = map[string]struct{}{
	"i": {}, "you": {}, "the": {}, "is": {}, "are": {}, "love": {},
	"good": {}, "ok": {}, "what": {}, "how": {}, "do": {},
}

// Classify maps a text span to a Tag. It is pure and never fails: text the
// heuristic cannot place comes back as Mixed.
func Classify(text string) Tag {
	var hasLetter bool
	for _, r := range text {
		if unicode.Is(unicode.Devanagari, r) {
			return Hindi
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	if !hasLetter {
		return Mixed
	}

	var hindiHits, engHits int
	for _, word := range splitWords(text) {
		if _, ok := hindiKeywords[word]; ok {
			hindiHits++
		}
		if _, ok := englishKeywords[word]; ok {
			engHits++
		}
	}

	switch {
	case hindiHits >= 2:
		return Hindi
	case hindiHits > 0 && engHits > 0:
		return Mixed
	case hindiHits > 0:
		return Hindi
	default:
		return English
	}
}

func splitWords(text string) []string {
	return strings.FieldsFunc(
		strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && r != '\''
		},
	)
}
