// Package analysis derives prosody metrics from word timestamps and maps them
// to a coarse emotional-state label. Everything here is pure and safe for
// concurrent use.
package analysis

import (
	"math"
	"strconv"

	"heart-audio/pkg/models"
)

// UtteranceGapSeconds is the silence length above which a new utterance starts.
const UtteranceGapSeconds = 0.8

// ComputeMetrics runs a single pass over words and summarizes speaking rate,
// pause structure and pause-delimited utterance segmentation.
//
// Empty input or a non-positive duration yields the zero record. Words with
// end <= start are skipped and do not move the previous-end marker, but they
// still count towards the word total used for the rate and pause averages.
func ComputeMetrics(words []models.WordTimestamp, durationMs int) models.MetricsRecord {
	if len(words) == 0 || durationMs <= 0 {
		return models.MetricsRecord{}
	}

	durationSec := float64(durationMs) / 1000.0
	wordCount := len(words)

	var (
		totalPause            float64
		prevEnd               float64
		havePrev              bool
		utteranceCount        = 1
		currentUtteranceWords int
		totalUtteranceWords   int
	)

	for _, w := range words {
		if w.End <= w.Start {
			continue
		}
		currentUtteranceWords++

		if havePrev {
			gap := math.Max(0, w.Start-prevEnd)
			if gap > UtteranceGapSeconds {
				utteranceCount++
				totalUtteranceWords += currentUtteranceWords
				currentUtteranceWords = 0
			}
			totalPause += gap
		}
		prevEnd = w.End
		havePrev = true
	}
	totalUtteranceWords += currentUtteranceWords

	var wpm, pauseRatio float64
	if durationSec > 0 {
		wpm = float64(wordCount) / (durationSec / 60.0)
		pauseRatio = math.Min(1, totalPause/durationSec)
	}
	// Denominator is every input word, not the number of gaps summed.
	avgPauseMs := roundTo(totalPause/float64(max(1, wordCount-1))*1000, 0)
	avgUtteranceWords := float64(totalUtteranceWords) / float64(max(1, utteranceCount))

	return models.MetricsRecord{
		WordsPerMinute:        roundTo(wpm, 1),
		PauseRatio:            roundTo(pauseRatio, 2),
		AveragePauseMs:        int(avgPauseMs),
		UtteranceCount:        utteranceCount,
		AverageUtteranceWords: roundTo(avgUtteranceWords, 1),
	}
}

// roundTo rounds the exact binary value of v to places decimals, ties to even.
// Scaling by a power of ten first would round twice and can push values such as
// 0.245 (stored as 0.24499...) across a classification threshold.
func roundTo(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}
