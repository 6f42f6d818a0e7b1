// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

package pipeline

import (
	"math"
	"sort"
	"strings"
)

// VectorizerConfig tunes vocabulary construction. Defaults match the
// service's standard indexing profile.
type VectorizerConfig struct {
	// MaxFeatures caps vocabulary size. When more terms survive the
	// frequency filters, the most frequent terms across the corpus win,
	// ties broken alphabetically. Zero means unlimited.
	MaxFeatures int

	// NgramMin and NgramMax bound the n-gram sizes emitted per document.
	NgramMin int
	NgramMax int

	// MinDocFreq drops terms appearing in fewer than this many documents.
	MinDocFreq int

	// MaxDocFreqRatio drops terms appearing in more than this fraction of
	// documents. Must be in (0, 1].
	MaxDocFreqRatio float64
}

// DefaultVectorizerConfig returns the standard indexing profile.
func DefaultVectorizerConfig() VectorizerConfig {
	return VectorizerConfig{
		MaxFeatures:     5000,
		NgramMin:        1,
		NgramMax:        2,
		MinDocFreq:      2,
		MaxDocFreqRatio: 0.8,
	}
}

func (c *VectorizerConfig) applyDefaults() {
	def := DefaultVectorizerConfig()
	if c.NgramMin <= 0 {
		c.NgramMin = def.NgramMin
	}
	if c.NgramMax < c.NgramMin {
		c.NgramMax = c.NgramMin
	}
	if c.MinDocFreq <= 0 {
		c.MinDocFreq = 1
	}
	if c.MaxDocFreqRatio <= 0 || c.MaxDocFreqRatio > 1 {
		c.MaxDocFreqRatio = def.MaxDocFreqRatio
	}
}

// SparseVector is one L2-normalized TF-IDF document row. Indices are sorted
// ascending and parallel to Values.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dot computes the inner product of two sparse vectors. For L2-normalized
// rows this is the cosine similarity.
func (v SparseVector) Dot(o SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] < o.Indices[j]:
			i++
		case v.Indices[i] > o.Indices[j]:
			j++
		default:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		}
	}
	return sum
}

// Vectorizer maps token streams to L2-normalized TF-IDF vectors over a fixed
// vocabulary. Fit establishes the vocabulary and document frequencies;
// Transform is pure afterward. Fields are exported for gob persistence.
type Vectorizer struct {
	Config VectorizerConfig

	// Vocabulary maps a term to its feature index. Indices are assigned in
	// alphabetical term order, so identical corpora always produce
	// identical vocabularies.
	Vocabulary map[string]int

	// IDF holds the smoothed inverse document frequency per feature index:
	// ln((1+n)/(1+df)) + 1.
	IDF []float64

	// DocCount is the number of documents seen at fit time.
	DocCount int
}

// NewVectorizer creates an unfitted vectorizer.
func NewVectorizer(cfg VectorizerConfig) *Vectorizer {
	cfg.applyDefaults()
	return &Vectorizer{Config: cfg}
}

// ngrams emits the configured n-grams for one token stream. Bigrams and
// larger join their tokens with a single space.
func (v *Vectorizer) ngrams(tokens []string) []string {
	if v.Config.NgramMin == 1 && v.Config.NgramMax == 1 {
		return tokens
	}
	var out []string
	for n := v.Config.NgramMin; n <= v.Config.NgramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// Fit builds the vocabulary and IDF table from the given token streams, one
// per document.
func (v *Vectorizer) Fit(docs [][]string) {
	n := len(docs)
	v.DocCount = n

	df := make(map[string]int)
	total := make(map[string]int)
	for _, tokens := range docs {
		counts := make(map[string]int)
		for _, term := range v.ngrams(tokens) {
			counts[term]++
		}
		for term, c := range counts {
			df[term]++
			total[term] += c
		}
	}

	maxDF := int(v.Config.MaxDocFreqRatio * float64(n))
	kept := make([]string, 0, len(df))
	for term, d := range df {
		if d < v.Config.MinDocFreq {
			continue
		}
		if n > 1 && d > maxDF {
			continue
		}
		kept = append(kept, term)
	}

	if v.Config.MaxFeatures > 0 && len(kept) > v.Config.MaxFeatures {
		sort.Slice(kept, func(a, b int) bool {
			if total[kept[a]] != total[kept[b]] {
				return total[kept[a]] > total[kept[b]]
			}
			return kept[a] < kept[b]
		})
		kept = kept[:v.Config.MaxFeatures]
	}
	sort.Strings(kept)

	v.Vocabulary = make(map[string]int, len(kept))
	v.IDF = make([]float64, len(kept))
	for i, term := range kept {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}
}

// TransformOne maps a single token stream to its normalized TF-IDF row.
// Terms outside the vocabulary are ignored. A document with no in-vocabulary
// terms yields an empty vector.
func (v *Vectorizer) TransformOne(tokens []string) SparseVector {
	counts := make(map[int]int)
	for _, term := range v.ngrams(tokens) {
		if idx, ok := v.Vocabulary[term]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var norm float64
	for i, idx := range indices {
		w := float64(counts[idx]) * v.IDF[idx]
		values[i] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range values {
			values[i] /= norm
		}
	}
	return SparseVector{Indices: indices, Values: values}
}

// Transform maps every document to its row.
func (v *Vectorizer) Transform(docs [][]string) []SparseVector {
	rows := make([]SparseVector, len(docs))
	for i, tokens := range docs {
		rows[i] = v.TransformOne(tokens)
	}
	return rows
}

// Features returns the vocabulary size.
func (v *Vectorizer) Features() int {
	return len(v.Vocabulary)
}
