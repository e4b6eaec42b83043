package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dipanshuofficial/Flow/internal/api/service"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSNotifier publishes notifications on flow.<tenantID>.notify so other services
// (audit log, chat bridges) can observe what the user was told.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

func NewNATSNotifier(natsURL, tenantID string, logger zerolog.Logger) (*NATSNotifier, error) {
	nc, err := nats.Connect(natsURL, nats.Name("flow-session"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSNotifier{conn: nc, subject: NotifySubject(tenantID), logger: logger}, nil
}

func NotifySubject(tenantID string) string {
	return fmt.Sprintf("flow.%s.notify", tenantID)
}

func (n *NATSNotifier) Notify(_ context.Context, msg service.Notification) {
	data, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error().Err(err).Msg("nats: marshal notification")
		return
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", n.subject).Msg("nats: publish notification")
	}
}

// Close drains the NATS connection.
func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		n.logger.Error().Err(err).Msg("nats drain")
	}
}
