package services

import (
	"math"

	"github.com/camden-git/missingpersons/config"
	"github.com/camden-git/missingpersons/models"
)

// Candidate is a registered person considered during matching. A nil
// Embedding means the person has none and is skipped.
type Candidate struct {
	PersonID  uint
	Embedding models.Embedding
}

// Match is the closest candidate within tolerance.
type Match struct {
	PersonID   uint
	Distance   float64
	Score      int
	QueryIndex int // which query embedding produced the match
}

// Matcher finds the nearest registered embedding by linear scan.
type Matcher struct {
	Tolerance float64
}

// NewMatcher falls back to config.DefaultMatchTolerance for a tolerance that
// is not a finite positive number.
func NewMatcher(tolerance float64) *Matcher {
	if !(tolerance > 0) || math.IsInf(tolerance, 1) {
		tolerance = config.DefaultMatchTolerance
	}
	return &Matcher{Tolerance: tolerance}
}

// FindBestMatch returns the globally closest (query, candidate) pair whose
// distance is strictly below the tolerance. On equal distances the first pair
// encountered wins, iterating queries in order and candidates in order.
func (m *Matcher) FindBestMatch(queries []models.Embedding, candidates []Candidate) (Match, bool) {
	best := Match{Distance: math.Inf(1)}
	found := false

	for qi, query := range queries {
		if len(query) != models.EmbeddingDimension {
			continue
		}
		for _, c := range candidates {
			if len(c.Embedding) != models.EmbeddingDimension {
				continue
			}
			d := Distance(query, c.Embedding)
			if d >= m.Tolerance {
				continue
			}
			if d < best.Distance {
				best = Match{PersonID: c.PersonID, Distance: d, QueryIndex: qi}
				found = true
			}
		}
	}

	if !found {
		return Match{}, false
	}
	best.Score = Score(best.Distance, m.Tolerance)
	return best, true
}

// Distance is the Euclidean distance between two equal-length embeddings.
func Distance(a, b models.Embedding) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Score converts a distance below tolerance into a 1..100 confidence.
// Closer is never lower; rounding makes it non-decreasing rather than strictly increasing.
func Score(distance, tolerance float64) int {
	score := int(math.Round(100 * (1 - distance/tolerance)))
	if score < 1 {
		return 1
	}
	if score > 100 {
		return 100
	}
	return score
}
