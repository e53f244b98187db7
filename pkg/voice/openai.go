package voice

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soypete/voicejournal/pkg/audio"
)

const summarySystemPrompt = "You are a concise summarizer. Summarize the user's journal entry in 2-4 bullet points. " +
	"Respond in markdown and include nothing but the bullet points."

// OpenAIConfig configures the OpenAI-compatible speech and chat clients.
// BaseURL may point at any server speaking the OpenAI API (Groq, vLLM,
// llama-server, ...).
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Language    string
	MaxTokens   int
	Temperature float32
}

func newOpenAIClient(cfg OpenAIConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(clientCfg)
}

// OpenAITranscriber implements SpeechToText with the audio transcriptions API.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	language string
}

var _ SpeechToText = (*OpenAITranscriber)(nil)

func NewOpenAITranscriber(cfg OpenAIConfig) *OpenAITranscriber {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAITranscriber{
		client:   newOpenAIClient(cfg),
		model:    model,
		language: cfg.Language,
	}
}

func (t *OpenAITranscriber) TranscribeAudio(ctx context.Context, data []byte) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "audio." + audio.Format,
		Reader:   bytes.NewReader(data),
		Language: t.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// OpenAISummarizer implements Summarizer with the chat completions API.
type OpenAISummarizer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

var _ Summarizer = (*OpenAISummarizer)(nil)

func NewOpenAISummarizer(cfg OpenAIConfig) *OpenAISummarizer {
	return &OpenAISummarizer{
		client:      newOpenAIClient(cfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	// go-openai omits a zero temperature, which the API reads as its default.
	temperature := s.temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
		MaxTokens:   s.maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
