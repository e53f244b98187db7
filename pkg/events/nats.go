// Package events publishes journal writes on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/soypete/voicejournal/pkg/journal"
)

// DefaultSubject is the subject prefix; events go to <prefix>.<kind>.
const DefaultSubject = "voicejournal.entries"

type Config struct {
	URL     string `json:"nats_url" yaml:"nats_url"`
	Subject string `json:"subject" yaml:"subject"`
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher implements journal.Publisher. Publishing is fire and forget;
// nothing waits for subscribers.
type Publisher struct {
	nc      conn
	subject string
}

var _ journal.Publisher = (*Publisher)(nil)

func Connect(cfg Config) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("voicejournal"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return newPublisher(nc, cfg.Subject), nil
}

func newPublisher(nc conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

// Subject returns the subject events of kind are published on.
func (p *Publisher) Subject(kind string) string {
	return p.subject + "." + kind
}

func (p *Publisher) Publish(ctx context.Context, ev journal.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(ev.Kind), data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Kind, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
