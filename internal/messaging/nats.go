package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gatewatch-systems/gatewatch/internal/logging"
)

const (
	// SensorSubjectPrefix is the subject root sensors publish raw events on,
	// e.g. sensor.events.alert.
	SensorSubjectPrefix = "sensor.events"

	banSubject   = "enforce.ban"
	unbanSubject = "enforce.unban"
)

// Connect establishes a connection to the NATS server with sane reconnect
// behavior for a long-running engine.
func Connect(url string, logger *logging.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []nats.Option{
		nats.Name("gatewatch-engine"),
		nats.Timeout(30 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	return nats.Connect(url, opts...)
}

// SetupJetStream initializes JetStream and creates the engine's streams: one
// for raw sensor events, one for ban actions consumed by the enforcement
// point.
func SetupJetStream(nc *nats.Conn) (nats.JetStreamContext, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "SENSOR_EVENTS",
		Subjects: []string{SensorSubjectPrefix + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("create sensor stream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "ENFORCE_ACTIONS",
		Subjects: []string{banSubject, unbanSubject},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("create enforce stream: %w", err)
	}

	return js, nil
}

// BanActionMessage is the wire format consumed by the enforcement point.
type BanActionMessage struct {
	Action    string `json:"action"`
	IP        string `json:"ip"`
	Reason    string `json:"reason,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func publish(js nats.JetStreamContext, subject string, msg *BanActionMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal ban action: %w", err)
	}
	if _, err := js.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
