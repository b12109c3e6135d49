package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gatewatch-systems/gatewatch/internal/logging"
	"github.com/gatewatch-systems/gatewatch/internal/models"
)

// EventSink receives normalized raw events. Satisfied by ingest.Ingestor.
type EventSink interface {
	Ingest(ctx context.Context, raw *models.RawEvent) (uint64, error)
}

// SensorEvent is the wire format sensors publish: a subset of the Suricata
// EVE record.
type SensorEvent struct {
	Timestamp string       `json:"timestamp"`
	EventType string       `json:"event_type"`
	SrcIP     string       `json:"src_ip"`
	SrcPort   int          `json:"src_port"`
	DestIP    string       `json:"dest_ip"`
	DestPort  int          `json:"dest_port"`
	Proto     string       `json:"proto"`
	Alert     *SensorAlert `json:"alert,omitempty"`
}

// SensorAlert carries alert-specific fields of a sensor event.
type SensorAlert struct {
	Action    string `json:"action"`
	Signature string `json:"signature"`
	Category  string `json:"category"`
	Severity  int    `json:"severity"`
}

var sensorTimeFormats = []string{
	"2006-01-02T15:04:05.000000-0700",
	"2006-01-02T15:04:05.000000Z",
	time.RFC3339Nano,
}

// ParseSensorEvent converts sensor wire JSON into a raw engine event.
// Sensor severity runs 1 = most severe down to 4 = informational; the engine
// scale is inverted (4 = most severe), so severity is normalized here.
func ParseSensorEvent(data []byte) (*models.RawEvent, error) {
	var se SensorEvent
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, fmt.Errorf("parse sensor event: %w", err)
	}

	raw := &models.RawEvent{
		EventType:  se.EventType,
		SrcIP:      se.SrcIP,
		SrcPort:    se.SrcPort,
		DestIP:     se.DestIP,
		DestPort:   se.DestPort,
		Protocol:   se.Proto,
		Severity:   models.SeverityMin,
		RawPayload: string(data),
	}

	for _, format := range sensorTimeFormats {
		if ts, err := time.Parse(format, se.Timestamp); err == nil {
			raw.Timestamp = ts
			break
		}
	}

	if se.Alert != nil {
		raw.Signature = se.Alert.Signature
		raw.Category = se.Alert.Category
		raw.Severity = normalizeSeverity(se.Alert.Severity)
		if se.Alert.Action == "blocked" {
			raw.Action = string(models.ActionBlocked)
		} else {
			raw.Action = string(models.ActionAllowed)
		}
	}

	return raw, nil
}

func normalizeSeverity(sensor int) int {
	normalized := models.SeverityMax + models.SeverityMin - sensor
	if normalized < models.SeverityMin {
		return models.SeverityMin
	}
	if normalized > models.SeverityMax {
		return models.SeverityMax
	}
	return normalized
}

// Consumer subscribes to the sensor event stream and feeds the ingestor.
type Consumer struct {
	js     nats.JetStreamContext
	sink   EventSink
	logger *logging.Logger
	sub    *nats.Subscription
}

// NewConsumer creates a sensor-event consumer.
func NewConsumer(js nats.JetStreamContext, sink EventSink, logger *logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Consumer{js: js, sink: sink, logger: logger}
}

// Start subscribes with a durable consumer. Malformed and invalid events are
// acked and dropped; redelivering them would never succeed.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.js.Subscribe(SensorSubjectPrefix+".>", func(msg *nats.Msg) {
		raw, err := ParseSensorEvent(msg.Data)
		if err != nil {
			c.logger.Warn("dropping unparseable sensor event", "error", err)
			msg.Ack()
			return
		}
		if _, err := c.sink.Ingest(ctx, raw); err != nil {
			c.logger.Warn("dropping invalid sensor event", "error", err)
		}
		msg.Ack()
	}, nats.Durable("gatewatch-ingest"), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("subscribe sensor events: %w", err)
	}

	c.sub = sub
	return nil
}

// Close unsubscribes from the sensor stream.
func (c *Consumer) Close() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
}
