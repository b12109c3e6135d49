package ingest

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gatewatch-systems/gatewatch/internal/bans"
	"github.com/gatewatch-systems/gatewatch/internal/engine"
	"github.com/gatewatch-systems/gatewatch/internal/geo"
	"github.com/gatewatch-systems/gatewatch/internal/logging"
	"github.com/gatewatch-systems/gatewatch/internal/metrics"
	"github.com/gatewatch-systems/gatewatch/internal/models"
	"github.com/gatewatch-systems/gatewatch/internal/repository"
	"github.com/gatewatch-systems/gatewatch/internal/stats"
)

// Ingestor validates and normalizes incoming sensor events, enriches them
// with geo data, records them into the aggregation store and event log, and
// evaluates the automatic ban rules.
type Ingestor struct {
	store      *stats.Store
	events     repository.EventStore
	registry   *bans.Registry
	resolver   geo.Resolver // nil disables enrichment
	evaluator  *RuleEvaluator
	geoTimeout time.Duration
	logger     *logging.Logger

	nextID atomic.Uint64
}

// Config wires the ingestor's collaborators.
type Config struct {
	Store      *stats.Store
	Events     repository.EventStore
	Registry   *bans.Registry
	Resolver   geo.Resolver
	Evaluator  *RuleEvaluator
	GeoTimeout time.Duration
	Logger     *logging.Logger

	// StartID is the last event ID already present in the event store. IDs
	// assigned by this ingestor start above it, so a restart against a
	// durable archive never reissues an ID. Seed it from EventStore.LastID.
	StartID uint64
}

// NewIngestor creates an event ingestor.
func NewIngestor(cfg Config) *Ingestor {
	if cfg.GeoTimeout <= 0 {
		cfg.GeoTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = NewRuleEvaluator(nil)
	}
	i := &Ingestor{
		store:      cfg.Store,
		events:     cfg.Events,
		registry:   cfg.Registry,
		resolver:   cfg.Resolver,
		evaluator:  cfg.Evaluator,
		geoTimeout: cfg.GeoTimeout,
		logger:     cfg.Logger,
	}
	i.nextID.Store(cfg.StartID)
	return i
}

// Ingest validates raw, assigns an event ID and folds the event into the
// engine. Malformed input is rejected with a ValidationError before any state
// changes. Geo enrichment is best effort: resolver failures degrade to an
// unknown location and never fail ingestion.
func (i *Ingestor) Ingest(ctx context.Context, raw *models.RawEvent) (uint64, error) {
	event, err := i.normalize(raw)
	if err != nil {
		metrics.ValidationErrors.Inc()
		metrics.EventsTotal.WithLabelValues(raw.EventType, "rejected").Inc()
		return 0, err
	}

	i.enrich(ctx, event)

	event.ID = i.nextID.Add(1)
	i.store.Record(event)
	if err := i.events.Insert(ctx, event); err != nil {
		// Counters already include the event; the raw log is best effort.
		i.logger.ErrorContext(ctx, "failed to store event", "id", event.ID, "error", err)
	}
	metrics.EventsTotal.WithLabelValues(string(event.EventType), "ingested").Inc()

	i.evaluate(event)
	return event.ID, nil
}

func (i *Ingestor) normalize(raw *models.RawEvent) (*models.Event, error) {
	eventType := models.EventType(raw.EventType)
	if raw.EventType == "" {
		return nil, engine.NewValidationError("event_type", "is required")
	}
	if !models.ValidEventTypes[eventType] {
		return nil, engine.NewValidationError("event_type", "unknown event type "+raw.EventType)
	}

	if raw.SrcIP == "" {
		return nil, engine.NewValidationError("src_ip", "is required")
	}
	if _, err := netip.ParseAddr(raw.SrcIP); err != nil {
		return nil, engine.NewValidationError("src_ip", "not a valid IP literal")
	}
	if raw.DestIP == "" {
		return nil, engine.NewValidationError("dest_ip", "is required")
	}
	if _, err := netip.ParseAddr(raw.DestIP); err != nil {
		return nil, engine.NewValidationError("dest_ip", "not a valid IP literal")
	}

	if raw.Severity < models.SeverityMin || raw.Severity > models.SeverityMax {
		return nil, engine.NewValidationError("severity", "must be between 1 and 4")
	}

	protocol := strings.ToUpper(raw.Protocol)
	if protocol != "TCP" && protocol != "UDP" {
		return nil, engine.NewValidationError("protocol", "must be TCP or UDP")
	}

	action := models.Action(raw.Action)
	if raw.Action == "" {
		action = models.ActionAllowed
	} else if action != models.ActionBlocked && action != models.ActionAllowed {
		return nil, engine.NewValidationError("action", "must be blocked or allowed")
	}

	now := time.Now()
	timestamp := raw.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}

	return &models.Event{
		Timestamp:  timestamp,
		EventType:  eventType,
		SrcIP:      raw.SrcIP,
		SrcPort:    raw.SrcPort,
		DestIP:     raw.DestIP,
		DestPort:   raw.DestPort,
		Protocol:   protocol,
		Signature:  raw.Signature,
		Severity:   raw.Severity,
		Category:   raw.Category,
		Action:     action,
		RawPayload: raw.RawPayload,
		CreatedAt:  now,
	}, nil
}

func (i *Ingestor) enrich(ctx context.Context, event *models.Event) {
	if i.resolver == nil {
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, i.geoTimeout)
	defer cancel()

	loc, err := i.resolver.Resolve(lookupCtx, event.SrcIP)
	if err != nil {
		metrics.GeoLookupErrors.Inc()
		if errors.Is(err, engine.ErrGeoUnavailable) {
			i.logger.DebugContext(ctx, "geo enrichment skipped", "src_ip", event.SrcIP, "error", err)
		} else {
			i.logger.WarnContext(ctx, "geo lookup failed", "src_ip", event.SrcIP, "error", err)
		}
		return
	}
	event.Country = loc.Country
	event.City = loc.City
	event.Latitude = loc.Latitude
	event.Longitude = loc.Longitude
}

// evaluate runs the ban rules over the event. Private and loopback source
// addresses are never auto-banned.
func (i *Ingestor) evaluate(event *models.Event) {
	decisions := i.evaluator.Observe(event)
	if len(decisions) == 0 {
		return
	}

	if addr, err := netip.ParseAddr(event.SrcIP); err == nil && geo.IsPrivate(addr) {
		i.logger.Debug("skipping auto-ban for protected address", "src_ip", event.SrcIP)
		return
	}

	for _, d := range decisions {
		record, created := i.registry.Ban(bans.BanParams{
			IP:        d.IP,
			Reason:    d.Reason,
			Permanent: d.Rule.Permanent,
			TTL:       d.Rule.BanTTL,
			Source:    models.BanSourceRule,
			Country:   event.Country,
			City:      event.City,
		})
		if created {
			i.logger.Info("automatic ban applied",
				"ip", record.IPAddress, "rule", d.Rule.Name, "permanent", record.Permanent)
		}
	}
}
