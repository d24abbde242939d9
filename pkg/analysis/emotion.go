package analysis

import (
	"strings"

	"heart-audio/pkg/models"
)

const (
	FastWPM = 150.0
	SlowWPM = 95.0

	HighPauseRatioFast = 0.2
	HighPauseRatioSlow = 0.25
	LowPauseRatio      = 0.1

	// MaxNoteKeywords caps how many summarizer keywords end up in the note.
	MaxNoteKeywords = 3
)

// Rule is one row of the classification table.
type Rule struct {
	Label      models.EmotionLabel
	Confidence float64
	BaseNote   string
	Match      func(wpm, pauseRatio float64) bool
}

// Rules is evaluated top to bottom; the first match wins.
var Rules = []Rule{
	{
		Label:      models.LabelTensionFatigue,
		Confidence: 0.6,
		BaseNote:   "경향: 긴장/피로 신호 동시 관측 가능.",
		Match: func(wpm, pr float64) bool {
			return (wpm >= FastWPM && pr >= HighPauseRatioFast) || (wpm < SlowWPM && pr >= HighPauseRatioSlow)
		},
	},
	{
		Label:      models.LabelLowActivation,
		Confidence: 0.55,
		BaseNote:   "경향: 저활성/차분 상태 가능.",
		Match:      func(wpm, pr float64) bool { return wpm < SlowWPM && pr < LowPauseRatio },
	},
	{
		Label:      models.LabelHighActivation,
		Confidence: 0.55,
		BaseNote:   "경향: 고활성/집중 상태 가능.",
		Match:      func(wpm, pr float64) bool { return wpm >= FastWPM && pr < LowPauseRatio },
	},
}

// Fallback applies when no rule matches.
var Fallback = Rule{
	Label:      models.LabelNeutral,
	Confidence: 0.4,
	BaseNote:   "경향: 뚜렷한 편차 신호는 제한적.",
}

// Classify picks the first matching rule for the metrics and composes the note
// from the rule's base sentence, up to three keywords and the summary, in that order.
func Classify(metrics models.MetricsRecord, summaryText string, keywords []string) models.EmotionEstimate {
	rule := matchRule(metrics.WordsPerMinute, metrics.PauseRatio)

	var note strings.Builder
	note.WriteString(rule.BaseNote)
	if len(keywords) > 0 {
		note.WriteString(" 키워드: ")
		note.WriteString(strings.Join(keywords[:min(len(keywords), MaxNoteKeywords)], ", "))
	}
	if summaryText != "" {
		note.WriteString(" 요약: ")
		note.WriteString(summaryText)
	}

	return models.EmotionEstimate{
		Label:      rule.Label,
		Confidence: rule.Confidence,
		Note:       note.String(),
	}
}

func matchRule(wpm, pauseRatio float64) Rule {
	for _, r := range Rules {
		if r.Match(wpm, pauseRatio) {
			return r
		}
	}
	return Fallback
}
