// Package notify publishes build results to NATS so other systems (docs
// hosting, chat bots) can react to fresh documentation.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
	"git.home.luguber.info/inful/docgen/internal/logfields"
)

// BuildEvent is the JSON payload published after every build.
type BuildEvent struct {
	BuildID    string    `json:"build_id"`
	Dir        string    `json:"dir"`
	Tool       string    `json:"tool"`
	ConfigFile string    `json:"config_file"`
	Commit     string    `json:"commit,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Dirty      bool      `json:"dirty,omitempty"`
	Outcome    string    `json:"outcome"`
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	HTMLDir    string    `json:"html_dir,omitempty"`
	Title      string    `json:"title,omitempty"`
}

// Encode marshals the event payload.
func (e BuildEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// NATSPublisher publishes BuildEvents on a single subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		return nil, foundation.ConfigError("notify subject is required").Build()
	}
	conn, err := nats.Connect(url,
		nats.Name("docgen"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, foundation.NetworkError("connect to NATS").
			WithCause(err).
			WithContext("url", url).
			Build()
	}
	slog.Info("NATS publisher connected", slog.String("url", conn.ConnectedUrlRedacted()), logfields.Subject(subject))
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish sends the event and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, event BuildEvent) error {
	payload, err := event.Encode()
	if err != nil {
		return foundation.WrapError(err, foundation.CategoryInternal, "encode build event").Build()
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return foundation.NetworkError("publish build event").
			WithCause(err).
			WithContext(logfields.KeySubject, p.subject).
			Build()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return foundation.NetworkError("flush build event").
			WithCause(err).
			WithContext(logfields.KeySubject, p.subject).
			Build()
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
