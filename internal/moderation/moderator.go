// Package moderation masks forbidden words in message text before it is stored.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// DefaultReplacement is the rune written over every censored character.
const DefaultReplacement = '*'

// Moderator matches a fixed word list with an Aho-Corasick automaton.
// Matching is case-insensitive and ignores spaces and punctuation inside a
// word, so "b.a d" matches "bad".
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the automaton. Empty words are skipped; a list with no
// usable word yields a Moderator that returns text unchanged.
func NewModerator(words []string, replacement rune) (*Moderator, error) {
	var patterns [][]rune
	for _, word := range words {
		pattern := normalizeRunes([]rune(word))
		if len(pattern) == 0 {
			continue
		}
		patterns = append(patterns, pattern)
	}
	if len(patterns) == 0 {
		return &Moderator{replacement: replacement}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, replacement: replacement}, nil
}

// Censor replaces each matched word with the replacement rune, keeping the
// characters between matches intact.
func (m *Moderator) Censor(text string) string {
	if m.matcher == nil {
		return text
	}
	mapping := normalize(text)
	if len(mapping.normalized) == 0 {
		return text
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return text
	}

	runes := []rune(text)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			if unicode.IsSpace(runes[i]) {
				continue
			}
			runes[i] = m.replacement
		}
	}
	return string(runes)
}

func normalize(input string) textMapping {
	runes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(runes)),
		origIdx:    make([]int, 0, len(runes)),
	}
	for i, r := range runes {
		if isNoise(r) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(r))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(runes []rune) []rune {
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		if isNoise(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}

func isNoise(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}
