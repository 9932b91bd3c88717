package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream holding vault events.
	StreamName    = "VAULT_EVENTS"
	subjectPrefix = "vault.events"
)

// NATSNotifier publishes events to JetStream subjects vault.events.<kind>.
type NATSNotifier struct {
	js jetstream.JetStream
}

// NewNATSNotifier wraps an established JetStream context.
func NewNATSNotifier(js jetstream.JetStream) *NATSNotifier {
	return &NATSNotifier{js: js}
}

// Send publishes the message and waits for the stream acknowledgement.
func (n *NATSNotifier) Send(ctx context.Context, message Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = n.js.Publish(ctx, Subject(message.Kind), data, jetstream.WithMsgID(message.TransactionID))
	return err
}

// Subject returns the subject an event kind is published on.
func Subject(kind string) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, kind)
}

// ConnectNATS dials the broker with unbounded reconnects and returns a
// JetStream context.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}

// EnsureStream creates or updates the vault events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}
