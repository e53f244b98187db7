package httpbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/soypete/voicejournal/pkg/archive"
	"github.com/soypete/voicejournal/pkg/config"
	"github.com/soypete/voicejournal/pkg/database"
	"github.com/soypete/voicejournal/pkg/events"
	"github.com/soypete/voicejournal/pkg/journal"
	"github.com/soypete/voicejournal/pkg/logging"
	"github.com/soypete/voicejournal/pkg/storage"
	"github.com/soypete/voicejournal/pkg/storage/firestore"
	"github.com/soypete/voicejournal/pkg/voice"
)

// AppContext holds all the shared dependencies for the HTTP server
type AppContext struct {
	Config  *config.Config
	Logger  logging.Logger
	Store   journal.Store
	Journal *journal.Service

	closers []func() error
}

// NewAppContext builds every client named by cfg once, before the server
// accepts traffic.
func NewAppContext(ctx context.Context, cfg *config.Config, logger logging.Logger) (*AppContext, error) {
	app := &AppContext{Config: cfg, Logger: logger}

	stt, err := newSpeechToText(cfg)
	if err != nil {
		return nil, err
	}

	var summarizer voice.Summarizer
	if !cfg.Summary.Disabled {
		summarizer = voice.NewOpenAISummarizer(voice.OpenAIConfig{
			APIKey:      cfg.Summary.APIKey,
			BaseURL:     cfg.Summary.BaseURL,
			Model:       cfg.Summary.Model,
			MaxTokens:   cfg.Summary.MaxTokens,
			Temperature: cfg.Summary.Temperature,
		})
	}
	pipeline := voice.NewPipeline(stt, summarizer, cfg.STT.Language, logger)

	store, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	var opts []journal.Option

	if cfg.Archive.Bucket != "" {
		arc, err := archive.New(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		opts = append(opts, journal.WithArchiver(arc))
		logger.Info(ctx, "audio archive enabled", "bucket", cfg.Archive.Bucket)
	}

	if cfg.Events.NatsURL != "" {
		pub, err := events.Connect(events.Config{URL: cfg.Events.NatsURL, Subject: cfg.Events.Subject})
		if err != nil {
			// events are optional; keep serving without them
			logger.Warn(ctx, "cannot connect to nats, entry events disabled", "error", err)
		} else {
			app.closers = append(app.closers, pub.Close)
			opts = append(opts, journal.WithPublisher(pub))
			logger.Info(ctx, "entry events enabled", "subject", cfg.Events.Subject)
		}
	}

	app.Journal = journal.NewService(store, pipeline, logger, opts...)
	return app, nil
}

func newSpeechToText(cfg *config.Config) (voice.SpeechToText, error) {
	switch cfg.STT.Backend {
	case config.BackendOpenAI:
		return voice.NewOpenAITranscriber(voice.OpenAIConfig{
			APIKey:   cfg.STT.APIKey,
			BaseURL:  cfg.STT.BaseURL,
			Model:    cfg.STT.Model,
			Language: cfg.STT.Language,
		}), nil
	case config.BackendWhisperCpp:
		return voice.NewClient(cfg.STT.WhisperURL, cfg.STT.Language), nil
	default:
		return nil, fmt.Errorf("unsupported stt backend: %s", cfg.STT.Backend)
	}
}

func (app *AppContext) openStore(ctx context.Context) (journal.Store, error) {
	cfg := app.Config.Store

	switch cfg.Driver {
	case config.DriverMemory:
		return journal.NewMemoryStore(), nil

	case config.DriverPostgres, config.DriverSQLite:
		db, err := OpenDatabase(ctx, app.Config)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)

		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		return storage.NewJournalStore(db.DB, db.Driver())

	case config.DriverFirestore:
		store, err := firestore.New(ctx, firestore.Config{
			ProjectID:       cfg.Firestore.ProjectID,
			CredentialsFile: cfg.Firestore.CredentialsFile,
			Collection:      cfg.Firestore.Collection,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store.Close)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// OpenDatabase connects to the SQL database named by cfg.Store.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	d := cfg.Store.Database
	return database.New(ctx, &database.Config{
		Driver:   cfg.Store.Driver,
		URL:      d.URL,
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
		SSLMode:  d.SSLMode,
	})
}

// Close releases every client opened by NewAppContext, newest first.
func (app *AppContext) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
