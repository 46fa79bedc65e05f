package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/missingpersons/config"
	"github.com/camden-git/missingpersons/models"
)

// embeddingAt returns a vector whose distance from the zero vector is d.
func embeddingAt(d float64) models.Embedding {
	e := make(models.Embedding, models.EmbeddingDimension)
	e[0] = float32(d)
	return e
}

func zeroEmbedding() models.Embedding {
	return make(models.Embedding, models.EmbeddingDimension)
}

func TestDistance(t *testing.T) {
	a := zeroEmbedding()
	b := zeroEmbedding()
	b[0], b[1] = 3, 4
	assert.InDelta(t, 5.0, Distance(a, b), 1e-9)
	assert.Equal(t, 0.0, Distance(a, a))
}

func TestScore(t *testing.T) {
	tests := []struct {
		distance float64
		want     int
	}{
		{0, 100},
		{0.3, 50},
		{0.15, 75},
		{0.5999, 1},
		{0.597, 1},
		{0.594, 1},
		{0.588, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Score(tt.distance, 0.6), "distance %v", tt.distance)
	}
}

func TestScore_MonotonicNonIncreasingWithDistance(t *testing.T) {
	prev := math.MaxInt
	for d := 0.0; d < 0.6; d += 0.0005 {
		s := Score(d, 0.6)
		assert.GreaterOrEqual(t, s, 1)
		assert.LessOrEqual(t, s, 100)
		assert.LessOrEqual(t, s, prev)
		prev = s
	}
}

func TestFindBestMatch_ScenarioHalfwayScoresFifty(t *testing.T) {
	m := NewMatcher(0.6)
	match, ok := m.FindBestMatch(
		[]models.Embedding{zeroEmbedding()},
		[]Candidate{{PersonID: 7, Embedding: embeddingAt(0.3)}},
	)
	require.True(t, ok)
	assert.Equal(t, uint(7), match.PersonID)
	assert.InDelta(t, 0.3, match.Distance, 1e-6)
	assert.Equal(t, 50, match.Score)
}

func TestFindBestMatch_ToleranceIsExclusive(t *testing.T) {
	m := NewMatcher(0.5)
	candidates := []Candidate{{PersonID: 1, Embedding: embeddingAt(0.5)}}

	_, ok := m.FindBestMatch([]models.Embedding{zeroEmbedding()}, candidates)
	assert.False(t, ok)

	candidates[0].Embedding = embeddingAt(0.4999)
	match, ok := m.FindBestMatch([]models.Embedding{zeroEmbedding()}, candidates)
	require.True(t, ok)
	assert.Equal(t, 1, match.Score)
}

func TestFindBestMatch_DefaultToleranceExcludesSixTenths(t *testing.T) {
	m := NewMatcher(0)
	_, ok := m.FindBestMatch(
		[]models.Embedding{zeroEmbedding()},
		[]Candidate{{PersonID: 1, Embedding: embeddingAt(0.6)}},
	)
	assert.False(t, ok)
}

func TestNewMatcher_UnusableToleranceFallsBackToDefault(t *testing.T) {
	for _, tolerance := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.2} {
		m := NewMatcher(tolerance)
		assert.Equal(t, config.DefaultMatchTolerance, m.Tolerance)

		_, ok := m.FindBestMatch(
			[]models.Embedding{zeroEmbedding()},
			[]Candidate{{PersonID: 1, Embedding: embeddingAt(5)}},
		)
		assert.False(t, ok, "tolerance %v matched a distant candidate", tolerance)
	}
}

func TestFindBestMatch_BestAcrossMultipleQueries(t *testing.T) {
	m := NewMatcher(0.6)
	queries := []models.Embedding{embeddingAt(0.0), embeddingAt(1.0)}
	candidates := []Candidate{
		{PersonID: 1, Embedding: embeddingAt(0.45)}, // 0.45 from first query
		{PersonID: 2, Embedding: embeddingAt(1.1)},  // 0.1 from second query
	}

	match, ok := m.FindBestMatch(queries, candidates)
	require.True(t, ok)
	assert.Equal(t, uint(2), match.PersonID)
	assert.Equal(t, 1, match.QueryIndex)
	assert.InDelta(t, 0.1, match.Distance, 1e-6)
}

func TestFindBestMatch_SkipsAbsentAndMalformedEmbeddings(t *testing.T) {
	m := NewMatcher(0.6)
	candidates := []Candidate{
		{PersonID: 1, Embedding: nil},
		{PersonID: 2, Embedding: models.Embedding{0, 0, 0}},
		{PersonID: 3, Embedding: embeddingAt(0.2)},
	}

	match, ok := m.FindBestMatch([]models.Embedding{zeroEmbedding()}, candidates)
	require.True(t, ok)
	assert.Equal(t, uint(3), match.PersonID)

	_, ok = m.FindBestMatch([]models.Embedding{zeroEmbedding()}, candidates[:2])
	assert.False(t, ok)
}

func TestFindBestMatch_TieGoesToFirstCandidate(t *testing.T) {
	m := NewMatcher(0.6)
	candidates := []Candidate{
		{PersonID: 4, Embedding: embeddingAt(0.2)},
		{PersonID: 9, Embedding: embeddingAt(0.2)},
	}

	match, ok := m.FindBestMatch([]models.Embedding{zeroEmbedding()}, candidates)
	require.True(t, ok)
	assert.Equal(t, uint(4), match.PersonID)
}

func TestFindBestMatch_EmptyInputs(t *testing.T) {
	m := NewMatcher(0.6)
	_, ok := m.FindBestMatch(nil, []Candidate{{PersonID: 1, Embedding: zeroEmbedding()}})
	assert.False(t, ok)
	_, ok = m.FindBestMatch([]models.Embedding{zeroEmbedding()}, nil)
	assert.False(t, ok)
}
