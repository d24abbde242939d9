package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heart-audio/pkg/models"
)

func TestClassifyDecisionTable(t *testing.T) {
	cases := []struct {
		wpm        float64
		pauseRatio float64
		label      models.EmotionLabel
		confidence float64
	}{
		{160, 0.25, models.LabelTensionFatigue, 0.6},
		{150, 0.2, models.LabelTensionFatigue, 0.6},
		{80, 0.25, models.LabelTensionFatigue, 0.6},
		{94.9, 0.3, models.LabelTensionFatigue, 0.6},
		{80, 0.05, models.LabelLowActivation, 0.55},
		{0, 0, models.LabelLowActivation, 0.55},
		{170, 0.05, models.LabelHighActivation, 0.55},
		{150, 0.09, models.LabelHighActivation, 0.55},
		{120, 0.15, models.LabelNeutral, 0.4},
		{95, 0.05, models.LabelNeutral, 0.4},
		{80, 0.2, models.LabelNeutral, 0.4},
		{160, 0.15, models.LabelNeutral, 0.4},
		{149.9, 0.5, models.LabelNeutral, 0.4},
	}

	for _, tc := range cases {
		got := Classify(models.MetricsRecord{WordsPerMinute: tc.wpm, PauseRatio: tc.pauseRatio}, "", nil)
		assert.Equal(t, tc.label, got.Label, "wpm=%v pause_ratio=%v", tc.wpm, tc.pauseRatio)
		assert.Equal(t, tc.confidence, got.Confidence, "wpm=%v pause_ratio=%v", tc.wpm, tc.pauseRatio)
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	require.Len(t, Rules, 3)
	assert.Equal(t, models.LabelTensionFatigue, Rules[0].Label)
	assert.Equal(t, models.LabelLowActivation, Rules[1].Label)
	assert.Equal(t, models.LabelHighActivation, Rules[2].Label)
	assert.Equal(t, models.LabelNeutral, Fallback.Label)
}

func TestClassifyBaseNotesAreDistinct(t *testing.T) {
	seen := map[string]models.EmotionLabel{}
	for _, r := range append(append([]Rule{}, Rules...), Fallback) {
		require.NotEmpty(t, r.BaseNote, r.Label)
		_, dup := seen[r.BaseNote]
		assert.False(t, dup, "duplicate note for %s", r.Label)
		seen[r.BaseNote] = r.Label
	}
}

func TestClassifyNoteWithoutExtras(t *testing.T) {
	got := Classify(models.MetricsRecord{WordsPerMinute: 120, PauseRatio: 0.15}, "", []string{})
	assert.Equal(t, Fallback.BaseNote, got.Note)
}

func TestClassifyNoteComposition(t *testing.T) {
	metrics := models.MetricsRecord{WordsPerMinute: 160, PauseRatio: 0.25}

	got := Classify(metrics, "회의가 길었다", []string{"피로", "긴장", "업무", "야근"})

	assert.Equal(t, models.LabelTensionFatigue, got.Label)
	assert.Equal(t, 0.6, got.Confidence)
	assert.Equal(t, "경향: 긴장/피로 신호 동시 관측 가능. 키워드: 피로, 긴장, 업무 요약: 회의가 길었다", got.Note)
	assert.NotContains(t, got.Note, "야근")

	base := strings.Index(got.Note, Rules[0].BaseNote)
	kw := strings.Index(got.Note, "피로, 긴장, 업무")
	summary := strings.Index(got.Note, "회의가 길었다")
	assert.True(t, base == 0 && base < kw && kw < summary)
}

func TestClassifyKeywordsOnly(t *testing.T) {
	got := Classify(models.MetricsRecord{WordsPerMinute: 80, PauseRatio: 0.05}, "", []string{"차분"})
	assert.Equal(t, "경향: 저활성/차분 상태 가능. 키워드: 차분", got.Note)
}

func TestClassifySummaryOnly(t *testing.T) {
	got := Classify(models.MetricsRecord{WordsPerMinute: 170, PauseRatio: 0.05}, "발표 준비", nil)
	assert.Equal(t, "경향: 고활성/집중 상태 가능. 요약: 발표 준비", got.Note)
}

func TestClassifyComposesWithComputeMetrics(t *testing.T) {
	metrics := ComputeMetrics(nil, 0)
	got := Classify(metrics, "", nil)
	assert.Equal(t, models.LabelLowActivation, got.Label)
}

func TestEvaluateWithSummary(t *testing.T) {
	words := []models.WordTimestamp{{Start: 0, End: 0.5}, {Start: 0.6, End: 1.0}}

	metrics, emotion := Evaluate(words, 1000, &models.Summary{Summary: "짧은 인사", Keywords: []string{"인사"}})

	assert.Equal(t, 120.0, metrics.WordsPerMinute)
	assert.Equal(t, models.LabelNeutral, emotion.Label)
	assert.Equal(t, "경향: 뚜렷한 편차 신호는 제한적. 키워드: 인사 요약: 짧은 인사", emotion.Note)

	_, emotion = Evaluate(words, 1000, nil)
	assert.Equal(t, Fallback.BaseNote, emotion.Note)
}
