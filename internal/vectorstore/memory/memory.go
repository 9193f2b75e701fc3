package memory

import (
	"errors"
	"sort"
	"sync"
)

// Hit is one scored entry returned by Search.
type Hit struct {
	ID    int64
	Score float64
}

// Index is an in-memory vector index using brute-force cosine similarity.
// Vectors are assumed L2-normalized.
type Index struct {
	mu        sync.RWMutex
	dimension int
	ids       []int64
	pos       map[int64]int
	vectors   [][]float64
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Index{dimension: dimension, pos: map[int64]int{}}, nil
}

// Dimension returns the vector length the index accepts.
func (s *Index) Dimension() int { return s.dimension }

// Len returns the number of stored vectors.
func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Upsert stores vectors under ids, replacing any previous vector for an id.
func (s *Index) Upsert(ids []int64, vectors [][]float64) error {
	if len(ids) != len(vectors) {
		return errors.New("ids and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		if j, ok := s.pos[id]; ok {
			s.vectors[j] = vectors[i]
			continue
		}
		s.pos[id] = len(s.ids)
		s.ids = append(s.ids, id)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

// Scores returns the similarity of every stored vector to query.
func (s *Index) Scores(query []float64) map[int64]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]float64, len(s.ids))
	for i, id := range s.ids {
		out[id] = dot(s.vectors[i], query)
	}
	return out
}

// Search returns up to topK entries ordered by descending similarity.
// Ties keep insertion order.
func (s *Index) Search(query []float64, topK int) []Hit {
	if len(query) != s.dimension || topK <= 0 {
		return nil
	}
	s.mu.RLock()
	hits := make([]Hit, len(s.ids))
	for i, id := range s.ids {
		hits[i] = Hit{ID: id, Score: dot(s.vectors[i], query)}
	}
	s.mu.RUnlock()
	return TopK(hits, topK)
}

// TopK sorts hits by descending score, keeping the original order of
// equal scores, and truncates to k.
func TopK(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
