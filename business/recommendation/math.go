package recommendation

import (
	"fmt"
	"hybridReco/domain"
	"math"
	"sort"
)

// CosineSimilarity is dot(a,b) / (|a| |b|). Vectors must have the same length.
// Callers skip zero vectors before calling; a zero norm yields 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine %d vs %d: %w", len(a), len(b), domain.ErrDimensionMismatch)
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func isZeroVector(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// jaccard is |a ∩ b| / |a ∪ b|, 0 when both are empty.
func jaccard(a, b map[uint64]struct{}) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// runningAverage keeps avg = (avg*n + x) / (n+1).
type runningAverage struct {
	value float64
	count int
}

func (r *runningAverage) add(x float64) {
	r.value = (r.value*float64(r.count) + x) / float64(r.count+1)
	r.count++
}

func (r runningAverage) present() bool {
	return r.count > 0
}

type scoredProduct struct {
	productID uint64
	score     float64
}

// rankScores orders by score desc, product id asc, and keeps the first limit entries.
func rankScores(scores map[uint64]float64, limit int) []scoredProduct {
	out := make([]scoredProduct, 0, len(scores))
	for pid, s := range scores {
		out = append(out, scoredProduct{productID: pid, score: s})
	}
	sortScored(out)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortScored(s []scoredProduct) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].score == s[j].score {
			return s[i].productID < s[j].productID
		}
		return s[i].score > s[j].score
	})
}

func toSet(ids []uint64) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
