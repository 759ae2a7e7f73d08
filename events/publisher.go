// Package events fans out ledger events to external consumers.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"agrichain_go/utils"
)

// BlockSubject is the subject new-block events are published on.
const BlockSubject = "agrichain.blocks"

// Config selects and configures the event publisher.
type Config struct {
	Type string // "nats" or "none"
	URL  string // NATS server URL when Type is "nats"
}

// Publisher is the interface for event publishing.
type Publisher interface {
	Publish(subject string, data interface{}) error
	Close() error
}

// NewPublisher creates a publisher based on config.
func NewPublisher(cfg Config) (Publisher, error) {
	switch cfg.Type {
	case "nats":
		return newNATSPublisher(cfg)
	case "", "none":
		return NoopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported publisher type: %s", cfg.Type)
	}
}

// NATSPublisher implements Publisher using NATS.
type NATSPublisher struct {
	conn *nats.Conn
}

func newNATSPublisher(cfg Config) (*NATSPublisher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	utils.LogInfo("NATS publisher connected to %s", url)
	return &NATSPublisher{conn: conn}, nil
}

// Publish sends the JSON-encoded data on the subject.
func (p *NATSPublisher) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

// NoopPublisher drops every event. Used when no publisher is configured.
type NoopPublisher struct{}

// Publish discards the event.
func (NoopPublisher) Publish(string, interface{}) error { return nil }

// Close is a no-op.
func (NoopPublisher) Close() error { return nil }
