package voice

import (
	"context"

	"github.com/soypete/voicejournal/pkg/logging"
	"github.com/soypete/voicejournal/pkg/metrics"
)

// Pipeline transcribes a recording and, when the transcript is not empty,
// summarizes it. Transcription failures are embedded in the Result;
// summarizer failures are only logged.
type Pipeline struct {
	stt        SpeechToText
	summarizer Summarizer
	language   string
	logger     logging.Logger
}

// NewPipeline builds a Pipeline. summarizer may be nil to disable summaries.
func NewPipeline(stt SpeechToText, summarizer Summarizer, language string, logger logging.Logger) *Pipeline {
	return &Pipeline{
		stt:        stt,
		summarizer: summarizer,
		language:   language,
		logger:     logger.With("module", "voice"),
	}
}

func (p *Pipeline) Transcribe(ctx context.Context, audio []byte) Result {
	res := Result{
		Duration: len(audio),
		Language: p.language,
	}

	text, err := p.stt.TranscribeAudio(ctx, audio)
	if err != nil {
		metrics.TranscriptionFailuresTotal.Inc()
		p.logger.Error(ctx, "transcription failed", "error", err, "audio_length", len(audio))
		res.Error = err.Error()
		return res
	}
	res.Text = text

	if text == "" || p.summarizer == nil {
		return res
	}

	summary, err := p.summarizer.Summarize(ctx, text)
	if err != nil {
		metrics.SummaryFailuresTotal.Inc()
		p.logger.Warn(ctx, "summary failed", "error", err)
		return res
	}
	res.Summary = summary

	return res
}
