// Package summarizer condenses product descriptions and locates the
// sentences most relevant to a query.
package summarizer

import (
	"math"
	"sort"
	"strings"

	"smartcart/internal/chunker"
	"smartcart/internal/embedding/tfidf"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	maxSentences int
}

// NewFrequencySummarizer creates a frequency-based sentence ranker keeping
// at most maxSentences sentences.
func NewFrequencySummarizer(maxSentences int) *FrequencySummarizer {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &FrequencySummarizer{maxSentences: maxSentences}
}

// Summarize returns the highest ranked sentences of text in their original order.
func (s *FrequencySummarizer) Summarize(text string) string {
	sentences := chunker.Sentences(text)
	if len(sentences) <= s.maxSentences {
		return strings.Join(sentences, " ")
	}
	freq := map[string]float64{}
	tokens := make([][]string, len(sentences))
	for i, sent := range sentences {
		tokens[i] = tfidf.Tokenize(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i := range sentences {
		score := 0.0
		for _, tok := range tokens[i] {
			score += freq[tok] / maxF
		}
		// length normalization keeps long sentences from dominating
		if l := float64(len(tokens[i])); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	selected := make([]int, s.maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}

// Overlap returns the Ochiai coefficient |A∩B| / sqrt(|A||B|) between the
// content words of query and text.
func Overlap(query, text string) float64 {
	q := tokenSet(query)
	t := tokenSet(text)
	if len(q) == 0 || len(t) == 0 {
		return 0
	}
	inter := 0
	for tok := range q {
		if _, ok := t[tok]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(q))*float64(len(t)))
}

// BestSentence splits text into sentences and returns them along with the
// index of the one overlapping query most, or -1 when none overlaps.
func BestSentence(text, query string) ([]string, int) {
	sentences := chunker.Sentences(text)
	best, bestScore := -1, 0.0
	for i, sent := range sentences {
		if score := Overlap(query, sent); score > bestScore {
			best, bestScore = i, score
		}
	}
	return sentences, best
}

func tokenSet(s string) map[string]struct{} {
	tokens := tfidf.Tokenize(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
