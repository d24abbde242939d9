package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heart-audio/pkg/config"
	"heart-audio/pkg/telemetry"
)

func testConfig(url string) config.ProviderConfig {
	cfg := config.Default().Provider
	cfg.BaseURL = url
	cfg.APIKey = "sk-test"
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestTranscriberSendsVerboseWordRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "word", r.FormValue("timestamp_granularities[]"))
		assert.Equal(t, "ko", r.FormValue("language"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "voice.m4a", hdr.Filename)
		assert.Equal(t, []byte("audio-bytes"), data)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":" 안녕 ","duration":1.5,"words":[{"word":"안녕","start":0.1,"end":0.6},{"word":"x"}]}`)
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(testConfig(srv.URL), telemetry.NewDiscardLogger())
	out, err := tr.Transcribe(context.Background(), "voice.m4a", []byte("audio-bytes"))
	require.NoError(t, err)

	assert.Equal(t, " 안녕 ", out.Text)
	assert.Equal(t, 1500, out.DurationMs())
	require.Len(t, out.Words, 2)
	assert.Equal(t, 0.6, out.Words[0].End)
	assert.Equal(t, 0.0, out.Words[1].Start)
}

func TestTranscriberErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	_, err := NewOpenAITranscriber(cfg, telemetry.NewDiscardLogger()).Transcribe(context.Background(), "a.wav", []byte("x"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "quota exceeded")

	cfg.APIKey = ""
	_, err = NewOpenAITranscriber(cfg, telemetry.NewDiscardLogger()).Transcribe(context.Background(), "a.wav", []byte("x"))
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSummarizerDecodesJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat["type"])
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "회의가 길었다")

		content := `{"summary":"회의 요약","keywords":["피로","긴장","업무"]}`
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	defer srv.Close()

	s := NewOpenAISummarizer(testConfig(srv.URL), telemetry.NewDiscardLogger())
	out, err := s.Summarize(context.Background(), "회의가 길었다")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "회의 요약", out.Summary)
	assert.Equal(t, []string{"피로", "긴장", "업무"}, out.Keywords)
}

func TestSummarizerAbsentCases(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]string{"content": "not json"}}},
		})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	s := NewOpenAISummarizer(cfg, telemetry.NewDiscardLogger())

	out, err := s.Summarize(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0, calls)

	out, err = s.Summarize(context.Background(), "text")
	assert.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, calls)

	cfg.APIKey = ""
	out, err = NewOpenAISummarizer(cfg, telemetry.NewDiscardLogger()).Summarize(context.Background(), "text")
	assert.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, calls)
}
