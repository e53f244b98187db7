package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soypete/voicejournal/pkg/logging"
)

type fakeSTT struct {
	text string
	err  error
}

func (f fakeSTT) TranscribeAudio(ctx context.Context, audio []byte) (string, error) {
	return f.text, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	f.calls++
	return f.summary, f.err
}

func TestPipelineTranscribe(t *testing.T) {
	audio := []byte{0x1A, 0x45, 0xDF, 0xA3, 0x00, 0x00}

	tests := []struct {
		name          string
		stt           fakeSTT
		summarizer    *fakeSummarizer
		want          Result
		wantSummaries int
	}{
		{
			name:          "text and summary",
			stt:           fakeSTT{text: "I walked the dog."},
			summarizer:    &fakeSummarizer{summary: "- Walked the dog"},
			want:          Result{Text: "I walked the dog.", Duration: 6, Language: "en", Summary: "- Walked the dog"},
			wantSummaries: 1,
		},
		{
			name:       "transcription failure embeds error",
			stt:        fakeSTT{err: errors.New("upstream 503")},
			summarizer: &fakeSummarizer{summary: "unused"},
			want:       Result{Duration: 6, Language: "en", Error: "upstream 503"},
		},
		{
			name:       "empty text skips summary",
			stt:        fakeSTT{text: ""},
			summarizer: &fakeSummarizer{summary: "unused"},
			want:       Result{Duration: 6, Language: "en"},
		},
		{
			name:          "summary failure is swallowed",
			stt:           fakeSTT{text: "hello"},
			summarizer:    &fakeSummarizer{err: errors.New("rate limited")},
			want:          Result{Text: "hello", Duration: 6, Language: "en"},
			wantSummaries: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.stt, tt.summarizer, "en", logging.Discard())
			got := p.Transcribe(context.Background(), audio)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSummaries, tt.summarizer.calls)
		})
	}
}

func TestPipelineWithoutSummarizer(t *testing.T) {
	p := NewPipeline(fakeSTT{text: "hello"}, nil, "en", logging.Discard())
	got := p.Transcribe(context.Background(), []byte("abc"))
	assert.Equal(t, Result{Text: "hello", Duration: 3, Language: "en"}, got)
}
