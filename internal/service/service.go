package service

import (
	"net/netip"
	"time"

	"github.com/gatewatch-systems/gatewatch/internal/bans"
	"github.com/gatewatch-systems/gatewatch/internal/engine"
	"github.com/gatewatch-systems/gatewatch/internal/models"
	"github.com/gatewatch-systems/gatewatch/internal/stats"
)

// Service composes the aggregation store and ban registry into the read and
// control surface the API layer exposes: the stats overview plus manual
// ban/unban operations.
type Service struct {
	store    *stats.Store
	registry *bans.Registry
}

// NewService creates the overview/ban service.
func NewService(store *stats.Store, registry *bans.Registry) *Service {
	return &Service{store: store, registry: registry}
}

// Overview builds the dashboard snapshot from live counters. Pure and
// side-effect free; safe to call concurrently with ingestion.
func (s *Service) Overview() models.StatsSnapshot {
	now := time.Now()
	agg := s.store.Snapshot(now)
	counts := s.registry.Count()

	return models.StatsSnapshot{
		TotalEvents:  agg.TotalEvents,
		UniqueIPs:    agg.UniqueIPs,
		BannedIPs:    int64(counts.Permanent + counts.Temporary),
		RecentEvents: agg.RecentEvents,
		TopCountries: agg.TopCountries,
		LastUpdated:  now,
	}
}

// Ban validates and applies a manual ban request.
func (s *Service) Ban(req *models.BanRequest) (models.BanRecord, error) {
	if req.IPAddress == "" {
		return models.BanRecord{}, engine.NewValidationError("ip_address", "is required")
	}
	if _, err := netip.ParseAddr(req.IPAddress); err != nil {
		return models.BanRecord{}, engine.NewValidationError("ip_address", "not a valid IP literal")
	}
	if req.TTLSeconds < 0 {
		return models.BanRecord{}, engine.NewValidationError("ttl_seconds", "must not be negative")
	}

	record, _ := s.registry.Ban(bans.BanParams{
		IP:        req.IPAddress,
		Reason:    req.Reason,
		Permanent: req.Permanent,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
		Source:    models.BanSourceManual,
	})
	return record, nil
}

// Unban lifts a ban by IP literal or ban id. Unbanning an IP with no record
// is a success no-op.
func (s *Service) Unban(ipOrID string) error {
	if ipOrID == "" {
		return engine.NewValidationError("id", "is required")
	}

	ip := ipOrID
	if _, err := netip.ParseAddr(ipOrID); err != nil {
		record, err := s.registry.FindByID(ipOrID)
		if err != nil {
			// Already gone; unban is idempotent.
			return nil
		}
		ip = record.IPAddress
	}

	s.registry.Unban(ip)
	return nil
}

// ListBans returns all active ban records, most recent first.
func (s *Service) ListBans() []models.BanRecord {
	records := s.registry.List()
	if records == nil {
		records = []models.BanRecord{}
	}
	return records
}

// History returns recent ban/unban/expire transitions, newest first.
func (s *Service) History(limit int) []models.BanAuditEntry {
	entries := s.registry.History(limit)
	if entries == nil {
		entries = []models.BanAuditEntry{}
	}
	return entries
}
