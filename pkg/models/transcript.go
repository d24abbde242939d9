package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// WordTimestamp is one recognized word with its start and end offsets in seconds.
type WordTimestamp struct {
	Word  string  `json:"word,omitempty"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// UnmarshalJSON accepts records with missing, null or malformed start/end values
// and coerces them to 0. Numeric strings are parsed.
func (w *WordTimestamp) UnmarshalJSON(data []byte) error {
	var raw struct {
		Word  json.RawMessage `json:"word"`
		Start json.RawMessage `json:"start"`
		End   json.RawMessage `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		// not an object at all; keep the zero word instead of failing the whole transcript
		*w = WordTimestamp{}
		return nil
	}
	var word string
	if len(raw.Word) > 0 {
		_ = json.Unmarshal(raw.Word, &word)
	}
	*w = WordTimestamp{
		Word:  word,
		Start: coerceFloat(raw.Start),
		End:   coerceFloat(raw.End),
	}
	return nil
}

func coerceFloat(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return finite(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return finite(f)
		}
	}
	return 0
}

// LenientFloat decodes a JSON number or numeric string. Anything else, including
// null, non-finite or malformed values, decodes as 0.
type LenientFloat float64

func (f *LenientFloat) UnmarshalJSON(data []byte) error {
	*f = LenientFloat(coerceFloat(data))
	return nil
}

// MaxDurationMs caps durations converted from floating point milliseconds.
const MaxDurationMs = math.MaxInt32

// ClampMillis converts ms to whole milliseconds within [0, MaxDurationMs].
func ClampMillis(ms float64) int {
	switch {
	case math.IsNaN(ms) || ms <= 0:
		return 0
	case ms >= MaxDurationMs:
		return MaxDurationMs
	}
	return int(ms)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Transcription is what a speech-to-text provider returns for one recording.
type Transcription struct {
	Text     string          `json:"text"`
	Language string          `json:"language,omitempty"`
	Duration float64         `json:"-"`
	Words    []WordTimestamp `json:"words"`
}

func (t *Transcription) UnmarshalJSON(data []byte) error {
	type alias Transcription
	var raw struct {
		alias
		Duration json.RawMessage `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Transcription(raw.alias)
	t.Duration = coerceFloat(raw.Duration)
	return nil
}

// DurationMs converts the provider duration to whole milliseconds.
func (t *Transcription) DurationMs() int {
	if t == nil {
		return 0
	}
	return ClampMillis(t.Duration * 1000)
}
