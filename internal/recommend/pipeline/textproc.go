// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package pipeline

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"

	"github.com/reelmatch/reelmatch/internal/logging"
)

// defaultMinTokenLength drops single-character fragments left over from
// cleaning.
const defaultMinTokenLength = 2

// CleanText lowercases the input, strips punctuation and symbols, and
// collapses runs of whitespace to single spaces. Hyphens survive only
// between alphanumeric neighbors so compound genre tokens like "sci-fi"
// stay intact while stray dashes are removed. Tokens consisting entirely
// of digits (years, rankings) are dropped; mixed tokens like "r2d2" stay.
func CleanText(text string) string {
	lower := strings.ToLower(text)
	runes := []rune(lower)

	var b strings.Builder
	b.Grow(len(lower))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' && i > 0 && i < len(runes)-1 &&
			isAlnum(runes[i-1]) && isAlnum(runes[i+1]):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, w := range fields {
		if !allDigits(w) {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func allDigits(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// AnalyzerConfig tunes tokenization. The zero value with a language set
// gives the standard profile: default stopwords, stemming on, minimum
// token length 2.
type AnalyzerConfig struct {
	// Language selects the stemmer language.
	Language string

	// Stopwords overrides the filtered set. Nil selects DefaultStopwords;
	// ignored when DisableStopwords is set.
	Stopwords map[string]struct{}

	// DisableStopwords passes every token through the stopword stage.
	DisableStopwords bool

	// DisableStemming skips the stemmer even for supported languages.
	DisableStemming bool

	// MinTokenLength drops tokens shorter than this. Zero selects the
	// default of 2.
	MinTokenLength int
}

// Analyzer turns raw text into the token stream the vectorizer consumes:
// clean, split, drop stopwords and short fragments, stem.
//
// Stemming degrades rather than fails: when the configured language is not
// supported by the stemmer, the analyzer logs a warning once and passes
// tokens through unstemmed. The rest of the pipeline is unaffected.
type Analyzer struct {
	language  string
	stop      map[string]struct{}
	stemming  bool
	minLength int
}

// NewAnalyzer builds an analyzer from the given configuration.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	stop := cfg.Stopwords
	if cfg.DisableStopwords {
		stop = nil
	} else if stop == nil {
		stop = DefaultStopwords()
	}

	minLength := cfg.MinTokenLength
	if minLength <= 0 {
		minLength = defaultMinTokenLength
	}

	a := &Analyzer{language: cfg.Language, stop: stop, stemming: !cfg.DisableStemming, minLength: minLength}
	if a.stemming {
		if _, err := snowball.Stem("running", cfg.Language, false); err != nil {
			log := logging.WithComponent("pipeline.analyzer")
			log.Warn().
				Str("language", cfg.Language).
				Err(err).
				Msg("Stemmer language unsupported, continuing without stemming")
			a.stemming = false
		}
	}
	return a
}

// Stemming reports whether the analyzer stems tokens or runs in the
// degraded pass-through mode.
func (a *Analyzer) Stemming() bool {
	return a.stemming
}

// Tokens analyzes one document. The input need not be pre-cleaned.
func (a *Analyzer) Tokens(text string) []string {
	fields := strings.Fields(CleanText(text))
	tokens := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) < a.minLength {
			continue
		}
		if _, bad := a.stop[w]; bad {
			continue
		}
		if a.stemming {
			stemmed, err := snowball.Stem(w, a.language, false)
			if err == nil && stemmed != "" {
				w = stemmed
			}
		}
		tokens = append(tokens, w)
	}
	return tokens
}
