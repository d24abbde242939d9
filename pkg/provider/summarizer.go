package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"heart-audio/pkg/config"
	"heart-audio/pkg/models"
)

const (
	summarySystemPrompt = "Return only valid JSON. All strings must be in Korean."
	summaryUserPrompt   = "아래 대화를 요약하고 감정 키워드를 추출하세요. 출력은 JSON만.\n\n" +
		"대화:\n%s\n\n" +
		"출력 형식:\n" +
		`{ "summary": "2~3문장 요약", "keywords": ["키워드1","키워드2","키워드3"] }`
)

// OpenAISummarizer asks a chat model for a JSON summary and keyword list.
type OpenAISummarizer struct {
	client
	logger *logrus.Logger
	model  string
}

func NewOpenAISummarizer(cfg config.ProviderConfig, logger *logrus.Logger) *OpenAISummarizer {
	return &OpenAISummarizer{
		client: newClient(cfg),
		logger: logger,
		model:  cfg.SummaryModel,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize returns nil without calling out when there is no key or no text.
func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (*models.Summary, error) {
	if s.apiKey == "" || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	payload, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: fmt.Sprintf(summaryUserPrompt, text)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summary request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Provider: "summarizer", StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}

	var summary models.Summary
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &summary); err != nil {
		return nil, fmt.Errorf("summary content is not JSON: %w", err)
	}

	s.logger.WithField("keywords", len(summary.Keywords)).Debug("Summary received")
	return &summary, nil
}
