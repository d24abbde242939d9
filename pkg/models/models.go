package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MetricsRecord is the prosody summary of one utterance recording.
type MetricsRecord struct {
	WordsPerMinute        float64 `json:"wpm"`
	PauseRatio            float64 `json:"pause_ratio"`
	AveragePauseMs        int     `json:"avg_pause_ms"`
	UtteranceCount        int     `json:"utterance_count"`
	AverageUtteranceWords float64 `json:"avg_utterance_words"`
}

type EmotionLabel string

const (
	LabelTensionFatigue EmotionLabel = "tension_fatigue"
	LabelLowActivation  EmotionLabel = "low_activation"
	LabelHighActivation EmotionLabel = "high_activation"
	LabelNeutral        EmotionLabel = "neutral"
)

// EmotionEstimate is the heuristic label derived from a MetricsRecord.
type EmotionEstimate struct {
	Label      EmotionLabel `json:"label"`
	Confidence float64      `json:"confidence"`
	Note       string       `json:"note"`
}

// Summary is the optional output of the summarization provider.
type Summary struct {
	Summary  string   `json:"summary,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Text returns the summary string, tolerating a nil receiver.
func (s *Summary) Text() string {
	if s == nil {
		return ""
	}
	return s.Summary
}

func (s *Summary) KeywordList() []string {
	if s == nil {
		return nil
	}
	return s.Keywords
}

type AudioSubmission struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Filename  string    `json:"filename"`
	Data      []byte    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Size      int       `json:"size"`
}

// Analysis is the persisted result of running one submission through the pipeline.
type Analysis struct {
	ID             string           `json:"analysis_id"`
	UserID         string           `json:"user_id"`
	SessionID      string           `json:"session_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	AudioPath      string           `json:"audio_path,omitempty"`
	TranscriptText string           `json:"transcript_text"`
	Words          []WordTimestamp  `json:"words,omitempty"`
	DurationMs     int              `json:"duration_ms"`
	Metrics        *MetricsRecord   `json:"metrics,omitempty"`
	Emotion        *EmotionEstimate `json:"emotion_estimate,omitempty"`
	Summary        *Summary         `json:"summary,omitempty"`
	Status         ProcessingStatus `json:"status"`
	Error          string           `json:"error,omitempty"`
	ProcessedAt    time.Time        `json:"processed_at,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending      ProcessingStatus = "pending"
	StatusValidating   ProcessingStatus = "validating"
	StatusTranscribing ProcessingStatus = "transcribing"
	StatusAnalyzing    ProcessingStatus = "analyzing"
	StatusStoring      ProcessingStatus = "storing"
	StatusCompleted    ProcessingStatus = "completed"
	StatusFailed       ProcessingStatus = "failed"
)

// Terminal reports whether no further stage will touch a record in this status.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type PipelineMessage struct {
	Submission    *AudioSubmission
	Analysis      *Analysis
	Transcription *Transcription
	Error         error
	Stage         string
	done          chan struct{}
}

func NewPipelineMessage(sub *AudioSubmission, analysis *Analysis) *PipelineMessage {
	return &PipelineMessage{
		Submission: sub,
		Analysis:   analysis,
		Stage:      "ingestion",
		done:       make(chan struct{}),
	}
}

// Done is closed once the message reaches a terminal status.
func (m *PipelineMessage) Done() <-chan struct{} {
	return m.done
}

// Finish releases anyone waiting on Done. Only the final stage or a failure may call it.
func (m *PipelineMessage) Finish() {
	close(m.done)
}

// NewID returns a 32 character hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func NewAudioSubmission(userID, sessionID, filename string, data []byte) *AudioSubmission {
	return &AudioSubmission{
		ID:        NewID(),
		UserID:    userID,
		SessionID: sessionID,
		Filename:  filename,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Size:      len(data),
	}
}

func NewAnalysis(sub *AudioSubmission) *Analysis {
	return &Analysis{
		ID:        sub.ID,
		UserID:    sub.UserID,
		SessionID: sub.SessionID,
		CreatedAt: sub.Timestamp,
		Status:    StatusPending,
	}
}

// Clone returns a shallow copy. Nested values are replaced, never mutated, once set.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
