package models

import "time"

// EventType identifies the sensor subsystem that produced an event.
type EventType string

const (
	EventTypeAlert EventType = "alert"
	EventTypeSSH   EventType = "ssh"
	EventTypeHTTP  EventType = "http"
	EventTypeDNS   EventType = "dns"
	EventTypeTLS   EventType = "tls"
	EventTypeFlow  EventType = "flow"
)

// ValidEventTypes is the closed set of accepted event types.
var ValidEventTypes = map[EventType]bool{
	EventTypeAlert: true,
	EventTypeSSH:   true,
	EventTypeHTTP:  true,
	EventTypeDNS:   true,
	EventTypeTLS:   true,
	EventTypeFlow:  true,
}

// Action describes what the sensor did with the traffic.
type Action string

const (
	ActionBlocked Action = "blocked"
	ActionAllowed Action = "allowed"
)

// Severity bounds. 4 is the most severe.
const (
	SeverityMin = 1
	SeverityMax = 4
)

// RawEvent is an event as received from a sensor, before validation.
// Timestamp may be zero; the ingestor fills in the arrival time.
type RawEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	SrcIP      string    `json:"src_ip"`
	SrcPort    int       `json:"src_port"`
	DestIP     string    `json:"dest_ip"`
	DestPort   int       `json:"dest_port"`
	Protocol   string    `json:"protocol"`
	Signature  string    `json:"signature"`
	Severity   int       `json:"severity"`
	Category   string    `json:"category"`
	Action     string    `json:"action"`
	RawPayload string    `json:"raw_payload,omitempty"`
}

// Event is a validated, geo-enriched sensor event. Immutable once created.
type Event struct {
	ID         uint64    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	EventType  EventType `json:"event_type"`
	SrcIP      string    `json:"src_ip"`
	SrcPort    int       `json:"src_port"`
	DestIP     string    `json:"dest_ip"`
	DestPort   int       `json:"dest_port"`
	Protocol   string    `json:"protocol"`
	Signature  string    `json:"signature"`
	Severity   int       `json:"severity"`
	Category   string    `json:"category"`
	Action     Action    `json:"action"`
	Country    string    `json:"country,omitempty"`
	City       string    `json:"city,omitempty"`
	Latitude   float64   `json:"latitude,omitempty"`
	Longitude  float64   `json:"longitude,omitempty"`
	RawPayload string    `json:"raw_payload,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BanSource records how a ban came to exist.
type BanSource string

const (
	BanSourceManual BanSource = "manual"
	BanSourceRule   BanSource = "rule"
)

// BanRecord is the authoritative entry for a banned IP. At most one record
// exists per IP; re-bans merge into the existing record.
type BanRecord struct {
	ID        string     `json:"id"`
	IPAddress string     `json:"ip_address"`
	Reason    string     `json:"reason"`
	Source    BanSource  `json:"source"`
	Permanent bool       `json:"permanent"`
	BannedAt  time.Time  `json:"banned_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Country   string     `json:"country,omitempty"`
	City      string     `json:"city,omitempty"`
}

// BanAction is an audit entry for a registry transition.
type BanAction string

const (
	BanActionBan    BanAction = "ban"
	BanActionUnban  BanAction = "unban"
	BanActionExpire BanAction = "expire"
)

// BanAuditEntry records a single registry transition for the audit log.
type BanAuditEntry struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ip_address"`
	Action    BanAction `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Permanent bool      `json:"permanent"`
	At        time.Time `json:"at"`
}

// CountryCount is one entry of the top_countries list.
type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

// StatsSnapshot is the overview object served to the dashboard. It is derived
// from live counters at read time and never persisted.
type StatsSnapshot struct {
	TotalEvents  int64          `json:"total_events"`
	UniqueIPs    int64          `json:"unique_ips"`
	BannedIPs    int64          `json:"banned_ips"`
	RecentEvents int64          `json:"recent_events"`
	TopCountries []CountryCount `json:"top_countries"`
	LastUpdated  time.Time      `json:"last_updated"`
}

// EventFilter selects events for the query API. Search matches as a substring
// of src_ip, dest_ip or signature; Type matches exactly.
type EventFilter struct {
	Search string
	Type   EventType
	Page   int
	Limit  int
}

// Pagination describes one page of a result set.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// EventPage is a single consistent page of the event log.
type EventPage struct {
	Events     []*Event   `json:"events"`
	Pagination Pagination `json:"pagination"`
}

// BanRequest is the body of POST /api/bans.
type BanRequest struct {
	IPAddress  string `json:"ip_address"`
	Reason     string `json:"reason"`
	Permanent  bool   `json:"permanent"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

// BanCounts splits active bans by kind.
type BanCounts struct {
	Permanent int `json:"permanent"`
	Temporary int `json:"temporary"`
}
