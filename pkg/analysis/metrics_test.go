package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"heart-audio/pkg/models"
)

func TestComputeMetricsDegenerateInput(t *testing.T) {
	words := []models.WordTimestamp{{Start: 0, End: 0.5}}

	cases := []struct {
		name       string
		words      []models.WordTimestamp
		durationMs int
	}{
		{"nil words", nil, 5000},
		{"empty words", []models.WordTimestamp{}, 5000},
		{"zero duration", words, 0},
		{"negative duration", words, -100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, models.MetricsRecord{}, ComputeMetrics(tc.words, tc.durationMs))
		})
	}
}

func TestComputeMetricsSingleUtterance(t *testing.T) {
	words := []models.WordTimestamp{
		{Start: 0, End: 0.5},
		{Start: 0.6, End: 1.0},
	}

	got := ComputeMetrics(words, 1000)

	assert.Equal(t, models.MetricsRecord{
		WordsPerMinute:        120.0,
		PauseRatio:            0.1,
		AveragePauseMs:        100,
		UtteranceCount:        1,
		AverageUtteranceWords: 2.0,
	}, got)
}

func TestComputeMetricsLongPauseSplitsUtterances(t *testing.T) {
	words := []models.WordTimestamp{
		{Start: 0, End: 0.5},
		{Start: 1.5, End: 2.0},
	}

	got := ComputeMetrics(words, 3000)

	assert.Equal(t, 2, got.UtteranceCount)
	// The word that opens the second segment is counted before the boundary
	// folds, so the first fold carries both words and the final fold is empty.
	assert.Equal(t, 1.0, got.AverageUtteranceWords)
	assert.Equal(t, 40.0, got.WordsPerMinute)
	assert.Equal(t, 0.33, got.PauseRatio)
	assert.Equal(t, 1000, got.AveragePauseMs)
}

func TestComputeMetricsGapAtThresholdIsNotBoundary(t *testing.T) {
	words := []models.WordTimestamp{
		{Start: 0, End: 1},
		{Start: 1.8, End: 2},
	}

	got := ComputeMetrics(words, 2000)

	assert.Equal(t, 1, got.UtteranceCount)
	assert.Equal(t, 2.0, got.AverageUtteranceWords)
}

func TestComputeMetricsSkipsZeroDurationWords(t *testing.T) {
	words := []models.WordTimestamp{
		{Start: 0, End: 1},
		{Start: 5, End: 5},
		{Start: 1.5, End: 2},
	}

	got := ComputeMetrics(words, 4000)

	// The zero-length word neither opens a gap from 1 to 5 nor moves prevEnd.
	assert.Equal(t, 1, got.UtteranceCount)
	assert.Equal(t, 2.0, got.AverageUtteranceWords)
	// 0.5/4 = 0.125 exactly: ties round to even.
	assert.Equal(t, 0.12, got.PauseRatio)
	// wordCount still includes the skipped word: 3 words over 4s.
	assert.Equal(t, 45.0, got.WordsPerMinute)
	// 0.5s of pause divided by wordCount-1 = 2, not by the single gap summed.
	assert.Equal(t, 250, got.AveragePauseMs)
}

func TestComputeMetricsAllWordsZeroDuration(t *testing.T) {
	words := []models.WordTimestamp{{Start: 1, End: 1}, {Start: 2, End: 1}}

	got := ComputeMetrics(words, 2000)

	assert.Equal(t, 1, got.UtteranceCount)
	assert.Equal(t, 0.0, got.AverageUtteranceWords)
	assert.Equal(t, 0.0, got.PauseRatio)
	assert.Equal(t, 0, got.AveragePauseMs)
	assert.Equal(t, 60.0, got.WordsPerMinute)
}

func TestComputeMetricsPauseRatioClamped(t *testing.T) {
	// Timestamps beyond the reported duration push raw pause above 100%.
	words := []models.WordTimestamp{
		{Start: 0, End: 0.1},
		{Start: 5, End: 5.1},
	}

	got := ComputeMetrics(words, 1000)

	assert.Equal(t, 1.0, got.PauseRatio)
	assert.Equal(t, 2, got.UtteranceCount)
}

func TestComputeMetricsOverlappingWordsHaveNoPause(t *testing.T) {
	words := []models.WordTimestamp{
		{Start: 0, End: 1},
		{Start: 0.5, End: 1.5},
	}

	got := ComputeMetrics(words, 2000)

	assert.Equal(t, 0.0, got.PauseRatio)
	assert.Equal(t, 0, got.AveragePauseMs)
}

func TestComputeMetricsIsDeterministic(t *testing.T) {
	words := []models.WordTimestamp{
		{Start: 0.12, End: 0.4},
		{Start: 0.5, End: 0.93},
		{Start: 2.1, End: 2.4},
		{Start: 2.45, End: 3.3},
	}

	first := ComputeMetrics(words, 3500)
	second := ComputeMetrics(words, 3500)

	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first.UtteranceCount, 1)
	assert.GreaterOrEqual(t, first.PauseRatio, 0.0)
	assert.LessOrEqual(t, first.PauseRatio, 1.0)
}

func TestComputeMetricsRoundsStoredValueOnce(t *testing.T) {
	// 0.49/2 is stored as 0.24499..., which must round down and stay below
	// the 0.25 tension threshold.
	words := []models.WordTimestamp{
		{Start: 0, End: 0.5},
		{Start: 0.99, End: 1.5},
	}

	got := ComputeMetrics(words, 2000)

	assert.Equal(t, 0.24, got.PauseRatio)
	assert.Equal(t, 60.0, got.WordsPerMinute)
	assert.Equal(t, models.LabelNeutral, Classify(got, "", nil).Label)
}

func TestComputeMetricsRateTieRoundsToEven(t *testing.T) {
	words := make([]models.WordTimestamp, 481)
	for i := range words {
		start := float64(i) * 0.5
		words[i] = models.WordTimestamp{Start: start, End: start + 0.4}
	}

	got := ComputeMetrics(words, 240000)

	// 481 words over 4 minutes is exactly 120.25.
	assert.Equal(t, 120.2, got.WordsPerMinute)
}

func TestRoundTo(t *testing.T) {
	cases := []struct {
		in     float64
		places int
		want   float64
	}{
		{0.245, 2, 0.24},
		{0.255, 2, 0.26},
		{0.125, 2, 0.12},
		{120.25, 1, 120.2},
		{120.35, 1, 120.3},
		{99.99999999999999, 0, 100},
		{2.5, 0, 2},
		{0, 2, 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, roundTo(tc.in, tc.places), "roundTo(%v, %d)", tc.in, tc.places)
	}
}
