package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	StreamName   = "audit-events"
	SubjectAudit = "audit.events"
)

type Config struct {
	URL string `env:"NATS_URL" env-default:"nats://localhost:4222"`
}

// Publisher pushes audit events onto JetStream for downstream consumers
// (retention dashboards, alerting). Losing the connection degrades the
// side-channel only; the durable audit record lives in postgres.
type Publisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

func Connect(cfg Config) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("share-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	if _, err := js.StreamInfo(StreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     StreamName,
			Subjects: []string{"audit.>"},
			Storage:  nats.FileStorage,
			MaxAge:   30 * 24 * time.Hour,
		})
		if err != nil {
			nc.Close()
			return nil, err
		}
	}

	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends the payload with a message id so redelivered duplicates can
// be deduplicated downstream (the audit contract is at-least-once).
func (p *Publisher) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.MsgId(uuid.New().String()))
	return err
}

func (p *Publisher) Close() {
	p.nc.Close()
}
