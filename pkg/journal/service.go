package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soypete/voicejournal/pkg/audio"
	"github.com/soypete/voicejournal/pkg/logging"
	"github.com/soypete/voicejournal/pkg/metrics"
	"github.com/soypete/voicejournal/pkg/voice"
)

// Event kinds published after a successful write.
const (
	EventCreated  = "created"
	EventAppended = "appended"
)

// Transcriber turns audio into a voice.Result. Failures are carried inside
// the result.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) voice.Result
}

// Archiver stores the raw recording and returns its object key.
type Archiver interface {
	Archive(ctx context.Context, audio []byte) (string, error)
}

// Publisher announces journal writes to other services.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Event struct {
	Kind       string    `json:"kind"`
	JournalID  string    `json:"journalId"`
	Item       Item      `json:"item"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Submission is one client upload: base64 audio plus opaque metadata.
type Submission struct {
	AudioData string          `json:"audioData"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Receipt describes a stored submission.
type Receipt struct {
	JournalID     string
	Timestamp     string
	Metadata      json.RawMessage
	Transcription voice.Result
}

type Option func(*Service)

func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides time.Now for item timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service validates submissions, transcribes them and writes them to the
// Store.
type Service struct {
	store       Store
	transcriber Transcriber
	archiver    Archiver
	publisher   Publisher
	logger      logging.Logger
	now         func() time.Time
}

func NewService(store Store, transcriber Transcriber, logger logging.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		transcriber: transcriber,
		logger:      logger.With("module", "journal"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores the submission as the first item of a new record.
func (s *Service) Create(ctx context.Context, sub Submission) (*Receipt, error) {
	item, result, err := s.ingest(ctx, sub)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Create(ctx, item)
	if err != nil {
		s.logger.Error(ctx, "failed to create journal", "error", err)
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	metrics.JournalItemsTotal.WithLabelValues("create").Inc()
	s.logger.Info(ctx, "journal created", "journal_id", id, "audio_length", item.AudioLength)

	s.publish(ctx, EventCreated, id, item)

	return &Receipt{JournalID: id, Timestamp: item.Timestamp, Metadata: item.Metadata, Transcription: result}, nil
}

// Append stores the submission at the end of an existing record. Returns
// ErrNotFound, wrapped, when id is unknown.
func (s *Service) Append(ctx context.Context, id string, sub Submission) (*Receipt, error) {
	item, result, err := s.ingest(ctx, sub)
	if err != nil {
		return nil, err
	}

	if err := s.store.Append(ctx, id, item); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn(ctx, "append to unknown journal", "journal_id", id)
		} else {
			s.logger.Error(ctx, "failed to append journal", "journal_id", id, "error", err)
		}
		return nil, fmt.Errorf("failed to append to journal %s: %w", id, err)
	}
	metrics.JournalItemsTotal.WithLabelValues("append").Inc()
	s.logger.Info(ctx, "journal appended", "journal_id", id, "audio_length", item.AudioLength)

	s.publish(ctx, EventAppended, id, item)

	return &Receipt{JournalID: id, Timestamp: item.Timestamp, Metadata: item.Metadata, Transcription: result}, nil
}

func (s *Service) ingest(ctx context.Context, sub Submission) (Item, voice.Result, error) {
	s.logger.Debug(ctx, "submission received", "audio_data_length", len(sub.AudioData))

	if sub.AudioData == "" {
		s.logger.Warn(ctx, "submission rejected", "reason", ErrMissingAudio)
		return Item{}, voice.Result{}, ErrMissingAudio
	}
	if !audio.IsValidContainer(sub.AudioData) {
		s.logger.Warn(ctx, "submission rejected", "reason", ErrInvalidFormat)
		return Item{}, voice.Result{}, ErrInvalidFormat
	}

	data, err := audio.Decode(sub.AudioData)
	if err != nil {
		// IsValidContainer already decoded it once
		return Item{}, voice.Result{}, ErrInvalidFormat
	}
	s.logger.Debug(ctx, "submission validated", "audio_length", len(data))

	result := s.transcriber.Transcribe(ctx, data)

	item := Item{
		Timestamp:     FormatTime(s.now()),
		Transcription: result.Text,
		Summary:       result.Summary,
		AudioLength:   len(data),
		Metadata:      NormalizeMetadata(sub.Metadata),
	}

	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, data)
		if err != nil {
			s.logger.Warn(ctx, "failed to archive audio", "error", err)
		} else {
			item.AudioKey = key
		}
	}

	return item, result, nil
}

func (s *Service) publish(ctx context.Context, kind, id string, item Item) {
	if s.publisher == nil {
		return
	}
	ev := Event{Kind: kind, JournalID: id, Item: item, OccurredAt: s.now().UTC()}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn(ctx, "failed to publish journal event", "kind", kind, "journal_id", id, "error", err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.store.Get(ctx, id)
}

// Latest returns the newest record. Read failures are logged and reported
// as ErrNotFound.
func (s *Service) Latest(ctx context.Context) (*Record, error) {
	rec, err := s.store.Latest(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn(ctx, "failed to fetch latest journal", "error", err)
		}
		return nil, ErrNotFound
	}
	return rec, nil
}

// LatestOrCreate returns the newest record, creating an empty placeholder
// when there is none.
func (s *Service) LatestOrCreate(ctx context.Context) (*Record, error) {
	rec, err := s.Latest(ctx)
	if err == nil {
		return rec, nil
	}

	placeholder := Item{
		Timestamp:     FormatTime(s.now()),
		Transcription: "",
		AudioLength:   0,
		Metadata:      json.RawMessage(`{"type":"journal"}`),
	}
	id, err := s.store.Create(ctx, placeholder)
	if err != nil {
		return nil, fmt.Errorf("failed to create placeholder journal: %w", err)
	}
	metrics.JournalItemsTotal.WithLabelValues("create").Inc()
	s.logger.Info(ctx, "placeholder journal created", "journal_id", id)

	rec, err = s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("journal %s missing right after create", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journal %s: %w", id, err)
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.store.List(ctx, ListLimit)
}
