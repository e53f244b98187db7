package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/soypete/voicejournal/pkg/audio"
)

// Client talks to a whisper.cpp HTTP server (examples/server in the
// whisper.cpp tree). The server must be started with --convert so it can
// accept webm input.
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

var _ SpeechToText = (*Client)(nil)

// NewClient creates a new whisper.cpp client
func NewClient(baseURL, language string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Transcription can take time
		},
	}
}

// TranscribeAudio sends the recording to /inference and returns the text.
func (c *Client) TranscribeAudio(ctx context.Context, data []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio."+audio.Format)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if c.language != "" && c.language != "auto" {
		if err := writer.WriteField("language", c.language); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("failed to write response_format field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inference", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper.cpp returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	// whisper.cpp returns: {"text": "transcribed text"}
	var whisperResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &whisperResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return strings.Join(strings.Fields(whisperResp.Text), " "), nil
}
