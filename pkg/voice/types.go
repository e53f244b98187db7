package voice

import "context"

// Result is the outcome of transcribing one recording. A failed
// transcription is reported through Error, never as a Go error, so the
// caller can still store the submission.
type Result struct {
	// Transcribed text, empty when transcription failed
	Text string `json:"text"`

	// Byte length of the audio; a coarse stand-in for duration
	Duration int `json:"duration"`

	// Language the recognizer was asked for
	Language string `json:"language"`

	// Bullet point summary, empty when not attempted or failed
	Summary string `json:"summary,omitempty"`

	// Error message if transcription failed
	Error string `json:"error,omitempty"`
}

// SpeechToText turns recorded audio into text.
type SpeechToText interface {
	TranscribeAudio(ctx context.Context, audio []byte) (string, error)
}

// Summarizer condenses a transcript into a few markdown bullet points.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}
