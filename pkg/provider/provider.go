// Package provider talks to the remote speech-to-text and summarization
// services. Both speak the OpenAI REST dialect.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"heart-audio/pkg/config"
	"heart-audio/pkg/models"
)

var ErrMissingAPIKey = errors.New("provider API key not set")

// Transcriber turns audio into text with word level timestamps.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (*models.Transcription, error)
}

// Summarizer condenses a transcript into a short summary and keywords. A nil
// summary with a nil error means nothing was produced.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*models.Summary, error)
}

// APIError is returned for non-2xx provider responses.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

type client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
}

func newClient(cfg config.ProviderConfig) client {
	return client{
		hc:      &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

func (c client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
