package messaging

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gatewatch-systems/gatewatch/internal/logging"
	"github.com/gatewatch-systems/gatewatch/internal/models"
)

// BanPublisher notifies the external enforcement point of registry
// transitions over NATS. It satisfies bans.Notifier. Publishing is best
// effort: a delivery failure is logged, never surfaced to the ban caller.
type BanPublisher struct {
	js     nats.JetStreamContext
	logger *logging.Logger
}

// NewBanPublisher creates a ban-action publisher.
func NewBanPublisher(js nats.JetStreamContext, logger *logging.Logger) *BanPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &BanPublisher{js: js, logger: logger}
}

// BanApplied publishes a ban action.
func (p *BanPublisher) BanApplied(record models.BanRecord) {
	msg := &BanActionMessage{
		Action:    "ban",
		IP:        record.IPAddress,
		Reason:    record.Reason,
		Permanent: record.Permanent,
		Timestamp: time.Now().Unix(),
	}
	if record.ExpiresAt != nil {
		msg.ExpiresAt = record.ExpiresAt.Unix()
	}
	if err := publish(p.js, banSubject, msg); err != nil {
		p.logger.Warn("failed to publish ban action", "ip", record.IPAddress, "error", err)
	}
}

// BanLifted publishes an unban action.
func (p *BanPublisher) BanLifted(ip string) {
	msg := &BanActionMessage{
		Action:    "unban",
		IP:        ip,
		Timestamp: time.Now().Unix(),
	}
	if err := publish(p.js, unbanSubject, msg); err != nil {
		p.logger.Warn("failed to publish unban action", "ip", ip, "error", err)
	}
}
