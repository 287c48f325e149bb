package moderation

import (
	"collab-lab/errors"
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator masks listed words in chat text. Matching ignores case,
// punctuation, spacing and common leet substitutions, so "d.4.m.n" is
// caught as "damn". It is safe for concurrent use once built.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

// folded is text reduced to its matchable runes. Source[i] is the index in
// the original text of Runes[i].
type folded struct {
	Runes  []rune
	Source []int
}

// NewModerator builds the automaton from words. Words made only of noise
// are dropped and words that fold to the same pattern are kept once.
// ErrEmptyWords is returned when none is left.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (Moderator, error) {
	keys := lo.Uniq(lo.FilterMap(censoredWords, func(word string, _ int) (string, bool) {
		pattern := string(fold([]rune(word)).Runes)
		return pattern, pattern != ""
	}))
	patterns := lo.Map(keys, func(key string, _ int) []rune { return []rune(key) })
	if len(patterns) == 0 {
		return Moderator{}, errors.ErrEmptyWords
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	log.Debug("Moderator ready", "patterns", len(patterns))
	return Moderator{matcher: m, censoredChar: censoredChar, log: log}, nil
}

// Censor replaces every rune of a matched word, including the noise inside
// it, with the censor character. Spacing around words is preserved. It also
// returns the listed words that matched in their folded form, once each,
// in order of appearance.
func (m *Moderator) Censor(text string) (string, []string) {
	original := []rune(text)
	f := fold(original)
	if len(f.Runes) == 0 {
		return text, nil
	}

	hits := m.matcher.MultiPatternSearch(f.Runes, false)
	if len(hits) == 0 {
		return text, nil
	}

	for _, hit := range hits {
		start, end := hit.Pos, hit.Pos+len(hit.Word)
		if start < 0 || end > len(f.Source) {
			continue
		}
		for i := f.Source[start]; i <= f.Source[end-1]; i++ {
			original[i] = m.censoredChar
		}
	}
	words := lo.Uniq(lo.Map(hits, func(hit *goahocorasick.Term, _ int) string {
		return string(hit.Word)
	}))
	return string(original), words
}

func fold(text []rune) folded {
	f := folded{Runes: make([]rune, 0, len(text)), Source: make([]int, 0, len(text))}
	for i, r := range text {
		r = unleet(r)
		if isNoise(r) {
			continue
		}
		f.Runes = append(f.Runes, unicode.ToLower(r))
		f.Source = append(f.Source, i)
	}
	return f
}

// unleet maps common leet characters back to the letter they stand for.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
