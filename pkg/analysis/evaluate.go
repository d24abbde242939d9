package analysis

import "heart-audio/pkg/models"

// Evaluate runs ComputeMetrics then Classify. summary may be nil.
func Evaluate(words []models.WordTimestamp, durationMs int, summary *models.Summary) (models.MetricsRecord, models.EmotionEstimate) {
	metrics := ComputeMetrics(words, durationMs)
	return metrics, Classify(metrics, summary.Text(), summary.KeywordList())
}
