// Package chunker splits product text into sentences and short passages.
package chunker

import (
	"regexp"
	"strings"
)

var sentencePattern = regexp.MustCompile(`[^.!?\n]+(?:[.!?]+|$)`)

// Sentences splits text on sentence punctuation and line breaks, dropping
// empty pieces. Text without punctuation is one sentence.
func Sentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, s := range sentencePattern.FindAllString(line, -1) {
			s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "-*•"))
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// SentenceChunker groups sentences into passages with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

// NewSentenceChunker creates a chunker; overlap must be smaller than the chunk size.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 2
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 0
	}
	return &SentenceChunker{sentencesPerChunk: sentencesPerChunk, overlapSentences: overlapSentences}
}

// Chunk returns the passages of text in order.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := Sentences(text)
	var chunks []string
	for i := 0; i < len(sentences); {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks
}
