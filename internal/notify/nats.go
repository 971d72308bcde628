// Package notify fans collection job summaries out to NATS subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/unklstewy/flighttrail/internal/collector"
	"go.uber.org/zap"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "flighttrail.jobs"

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes every job summary as JSON on one subject.
type NATSPublisher struct {
	conn    Conn
	subject string
	logger  *zap.Logger
}

// Dial connects to a NATS server and returns a publisher for subject.
// The connection reconnects on its own for the life of the process.
func Dial(url, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("notify")

	nc, err := nats.Connect(url,
		nats.Name("flighttrail"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()), zap.String("subject", subject))
	return NewNATSPublisher(nc, subject, logger), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn Conn, subject string, logger *zap.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

// Subject returns the subject summaries are published on.
func (p *NATSPublisher) Subject() string {
	return p.subject
}

// PublishSummary implements collector.Publisher.
func (p *NATSPublisher) PublishSummary(ctx context.Context, summary collector.JobSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode job summary: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish job summary: %w", err)
	}

	p.logger.Debug("Job summary published", zap.String("subject", p.subject), zap.Int("bytes", len(data)))
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
