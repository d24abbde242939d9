package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"heart-audio/pkg/config"
	"heart-audio/pkg/models"
)

// OpenAITranscriber calls the audio transcription endpoint asking for
// verbose JSON with word granularity.
type OpenAITranscriber struct {
	client
	logger   *logrus.Logger
	model    string
	language string
}

func NewOpenAITranscriber(cfg config.ProviderConfig, logger *logrus.Logger) *OpenAITranscriber {
	return &OpenAITranscriber{
		client:   newClient(cfg),
		logger:   logger,
		model:    cfg.TranscriptionModel,
		language: cfg.Language,
	}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, filename string, audio []byte) (*models.Transcription, error) {
	if t.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if filename == "" {
		filename = "audio.m4a"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fileWriter, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to copy audio data: %w", err)
	}

	fields := [][2]string{
		{"model", t.model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "word"},
	}
	if t.language != "" {
		fields = append(fields, [2]string{"language", t.language})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	t.authorize(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Provider: "transcriber", StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out models.Transcription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode transcription: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"words":       len(out.Words),
		"duration_ms": out.DurationMs(),
		"bytes":       len(audio),
	}).Debug("Transcription received")

	return &out, nil
}
