package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAITranscriber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "audio.webm", hdr.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":" I walked the dog. "}`))
	}))
	defer server.Close()

	stt := NewOpenAITranscriber(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/v1", Language: "en"})
	text, err := stt.TranscribeAudio(context.Background(), []byte{0x1A, 0x45, 0xDF, 0xA3})
	require.NoError(t, err)
	assert.Equal(t, "I walked the dog.", text)
}

func TestOpenAITranscriberError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	stt := NewOpenAITranscriber(OpenAIConfig{APIKey: "nope", BaseURL: server.URL + "/v1"})
	_, err := stt.TranscribeAudio(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription request failed")
}

func TestOpenAISummarizer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, 300, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "I walked the dog.", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"- Walked the dog\n"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	s := NewOpenAISummarizer(OpenAIConfig{
		APIKey:      "k",
		BaseURL:     server.URL + "/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   300,
		Temperature: 0.5,
	})
	summary, err := s.Summarize(context.Background(), "I walked the dog.")
	require.NoError(t, err)
	assert.Equal(t, "- Walked the dog", summary)
}

func TestOpenAISummarizerTemperature(t *testing.T) {
	tests := []struct {
		name        string
		temperature float32
		check       func(t *testing.T, sent *float64)
	}{
		{
			name:        "configured value",
			temperature: 0.5,
			check: func(t *testing.T, sent *float64) {
				require.NotNil(t, sent)
				assert.InDelta(t, 0.5, *sent, 1e-6)
			},
		},
		{
			name:        "zero is sent, not dropped",
			temperature: 0,
			check: func(t *testing.T, sent *float64) {
				require.NotNil(t, sent)
				assert.InDelta(t, 0, *sent, 1e-6)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent *float64
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Temperature *float64 `json:"temperature"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				sent = req.Temperature

				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"- ok"},"finish_reason":"stop"}]}`))
			}))
			defer server.Close()

			s := NewOpenAISummarizer(OpenAIConfig{APIKey: "k", BaseURL: server.URL + "/v1", Model: "m", Temperature: tt.temperature})
			_, err := s.Summarize(context.Background(), "text")
			require.NoError(t, err)
			tt.check(t, sent)
		})
	}
}

func TestOpenAISummarizerNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	s := NewOpenAISummarizer(OpenAIConfig{APIKey: "k", BaseURL: server.URL + "/v1", Model: "m"})
	_, err := s.Summarize(context.Background(), "text")
	require.Error(t, err)
}
