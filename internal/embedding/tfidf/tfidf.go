package tfidf

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’]\p{L}+)*`)

// Vectorizer is a TF-IDF text embedder fitted on a product catalog.
// Vectors are L2-normalized, so a dot product is the cosine similarity.
type Vectorizer struct {
	vocabulary map[string]int
	idf        []float64
}

// New creates an unfitted vectorizer.
func New() *Vectorizer {
	return &Vectorizer{vocabulary: map[string]int{}}
}

// Fit builds the vocabulary and IDF values from corpus, one entry per product.
func (v *Vectorizer) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("tfidf: empty corpus")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return errors.New("tfidf: no tokens found in corpus")
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.vocabulary[term] = i
		// smoothed
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return nil
}

// Dimension returns the vocabulary size.
func (v *Vectorizer) Dimension() int { return len(v.idf) }

// Embed returns the TF-IDF vector of text. Terms outside the vocabulary are
// ignored; text without known terms yields the zero vector.
func (v *Vectorizer) Embed(text string) []float64 {
	vec := make([]float64, len(v.idf))
	counts := make(map[int]int)
	total := 0
	for _, tok := range Tokenize(text) {
		if idx, ok := v.vocabulary[tok]; ok {
			counts[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}
	var norm float64
	for idx, c := range counts {
		w := float64(c) / float64(total) * v.idf[idx]
		vec[idx] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Tokenize lowercases text and returns its content words with plural
// endings folded, so "Shoes" and "shoe" share a term.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if IsStopword(t) {
			continue
		}
		out = append(out, stem(t))
	}
	return out
}

// IsStopword reports whether a lowercase word carries no search meaning.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

func stem(t string) string {
	switch {
	case len(t) > 4 && strings.HasSuffix(t, "ies"):
		return t[:len(t)-3] + "y"
	case len(t) > 4 && (strings.HasSuffix(t, "ches") || strings.HasSuffix(t, "shes") || strings.HasSuffix(t, "xes")):
		return t[:len(t)-2]
	case len(t) > 3 && strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss") && !strings.HasSuffix(t, "us"):
		return t[:len(t)-1]
	}
	return t
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as",
		"is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down",
		"over", "under", "again", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after",
		"out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now",
		"do", "does", "did", "i", "me", "my", "you", "your", "what", "which", "who", "how", "there", "any", "has", "have",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
