package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"heart-audio/pkg/analysis"
	"heart-audio/pkg/models"
)

func (m *Manager) validate(ctx context.Context, msg *models.PipelineMessage) {
	defer m.metrics.ObserveStage("validation", time.Now())

	if len(msg.Submission.Data) == 0 {
		m.fail(msg, "validation", ErrEmptyAudio)
		return
	}

	if len(msg.Submission.Data) > m.config.MaxAudioBytes {
		m.fail(msg, "validation", fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, len(msg.Submission.Data)))
		return
	}

	if m.deps.Audio != nil {
		path, err := m.deps.Audio.Save(msg.Submission.ID, msg.Submission.Filename, msg.Submission.Data)
		if err != nil {
			m.fail(msg, "validation", err)
			return
		}
		msg.Analysis.AudioPath = path
	}

	m.advance(msg, "validation", models.StatusTranscribing)
	m.forward(m.transcriptionCh, msg)
}

func (m *Manager) transcribe(ctx context.Context, msg *models.PipelineMessage) {
	defer m.metrics.ObserveStage("transcription", time.Now())

	callCtx, cancel := m.stageContext(ctx)
	defer cancel()

	tr, err := m.deps.Transcriber.Transcribe(callCtx, msg.Submission.Filename, msg.Submission.Data)
	if err != nil {
		m.metrics.ProviderFailed("transcriber")
		m.fail(msg, "transcription", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err))
		return
	}

	msg.Transcription = tr
	msg.Analysis.TranscriptText = strings.TrimSpace(tr.Text)
	msg.Analysis.Words = tr.Words
	msg.Analysis.DurationMs = tr.DurationMs()

	m.advance(msg, "transcription", models.StatusAnalyzing)
	m.forward(m.analysisCh, msg)
}

func (m *Manager) analyze(ctx context.Context, msg *models.PipelineMessage) {
	defer m.metrics.ObserveStage("analysis", time.Now())

	a := msg.Analysis
	summary := m.summarize(ctx, a)

	metrics, emotion := analysis.Evaluate(a.Words, a.DurationMs, summary)
	a.Metrics = &metrics
	a.Emotion = &emotion
	a.Summary = summary

	m.logger.WithFields(logrus.Fields{
		"analysis_id": a.ID,
		"wpm":         metrics.WordsPerMinute,
		"pause_ratio": metrics.PauseRatio,
		"utterances":  metrics.UtteranceCount,
		"label":       emotion.Label,
	}).Debug("Analysis computed")

	m.advance(msg, "analysis", models.StatusStoring)
	m.forward(m.storageCh, msg)
}

// summarize is best effort: any failure leaves the summary absent.
func (m *Manager) summarize(ctx context.Context, a *models.Analysis) *models.Summary {
	if m.deps.Summarizer == nil || a.TranscriptText == "" {
		return nil
	}

	callCtx, cancel := m.stageContext(ctx)
	defer cancel()

	summary, err := m.deps.Summarizer.Summarize(callCtx, a.TranscriptText)
	if err != nil {
		m.metrics.ProviderFailed("summarizer")
		m.logger.WithFields(logrus.Fields{"analysis_id": a.ID, "error": err}).Warn("Summary unavailable")
		return nil
	}
	return summary
}

func (m *Manager) store(ctx context.Context, msg *models.PipelineMessage) {
	defer m.metrics.ObserveStage("storage", time.Now())

	a := msg.Analysis
	a.Status = models.StatusCompleted
	a.ProcessedAt = time.Now().UTC()

	if err := m.deps.Results.Save(ctx, a); err != nil {
		m.fail(msg, "storage", fmt.Errorf("failed to persist analysis: %w", err))
		return
	}

	msg.Stage = "storage"
	m.deps.Memory.StoreAnalysis(a)
	m.metrics.AnalysisFinished(string(models.StatusCompleted))
	m.metrics.EmotionLabeled(string(a.Emotion.Label))

	m.logger.WithFields(logrus.Fields{
		"analysis_id": a.ID,
		"user_id":     a.UserID,
		"label":       a.Emotion.Label,
	}).Info("Analysis completed")

	msg.Finish()
}

func (m *Manager) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.ProcessingTimeout > 0 {
		return context.WithTimeout(ctx, m.config.ProcessingTimeout)
	}
	return context.WithCancel(ctx)
}

// Recompute re-derives metrics and emotion for every stored analysis from its
// stored words, duration and summary, and returns how many records changed.
func (m *Manager) Recompute(ctx context.Context) (int, error) {
	all, err := m.deps.Results.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list analyses: %w", err)
	}

	updated := 0
	for _, a := range all {
		if a.Status != models.StatusCompleted {
			continue
		}
		metrics, emotion := analysis.Evaluate(a.Words, a.DurationMs, a.Summary)
		if a.Metrics != nil && *a.Metrics == metrics && a.Emotion != nil && *a.Emotion == emotion {
			continue
		}
		a.Metrics = &metrics
		a.Emotion = &emotion
		if err := m.deps.Results.Save(ctx, a); err != nil {
			return updated, fmt.Errorf("save %s: %w", a.ID, err)
		}
		updated++
	}

	m.logger.WithFields(logrus.Fields{"scanned": len(all), "updated": updated}).Info("Batch recompute finished")
	return updated, nil
}
