package bans

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatewatch-systems/gatewatch/internal/engine"
	"github.com/gatewatch-systems/gatewatch/internal/metrics"
	"github.com/gatewatch-systems/gatewatch/internal/models"
)

const shardCount = 64

// Notifier is informed of registry transitions so an external enforcement
// point can act on them. Calls are made outside the registry locks and must
// not block for long.
type Notifier interface {
	BanApplied(record models.BanRecord)
	BanLifted(ip string)
}

// Registry is the authoritative table of banned IPs. Records are sharded by
// IP hash so bans on different IPs never contend; all transitions for the
// same IP serialize on its shard lock.
type Registry struct {
	shards     [shardCount]shard
	defaultTTL time.Duration
	audit      *auditLog
	notifier   Notifier

	// clock is swappable for tests.
	clock func() time.Time
}

type shard struct {
	mu      sync.Mutex
	records map[string]*models.BanRecord
}

// Config controls registry behavior.
type Config struct {
	DefaultTTL time.Duration
	AuditSize  int
}

// BanParams describe a single ban request after validation.
type BanParams struct {
	IP        string
	Reason    string
	Permanent bool
	TTL       time.Duration // ignored when Permanent; 0 means the default TTL
	Source    models.BanSource
	Country   string
	City      string
}

// NewRegistry creates an empty ban registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	if cfg.AuditSize <= 0 {
		cfg.AuditSize = 1000
	}

	r := &Registry{
		defaultTTL: cfg.DefaultTTL,
		audit:      newAuditLog(cfg.AuditSize),
		clock:      time.Now,
	}
	for i := range r.shards {
		r.shards[i].records = make(map[string]*models.BanRecord)
	}
	return r
}

// SetNotifier installs the transition notifier. Must be called before the
// registry is shared across goroutines.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifier = n
}

func (r *Registry) shard(ip string) *shard {
	h := fnv.New32a()
	h.Write([]byte(ip))
	return &r.shards[h.Sum32()%shardCount]
}

// Ban creates or merges a ban for ip and reports whether a new record was
// created. Merge policy: a permanent ban always wins and is never weakened;
// two temporary bans keep the later expiry; reason follows the latest
// effective ban. The merge computation runs entirely under the shard lock so
// concurrent bans on the same IP serialize without losing an extension.
func (r *Registry) Ban(params BanParams) (models.BanRecord, bool) {
	now := r.clock()
	ttl := params.TTL
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	sh := r.shard(params.IP)
	sh.mu.Lock()

	existing, ok := sh.records[params.IP]
	var rec *models.BanRecord
	created := !ok

	switch {
	case !ok:
		rec = &models.BanRecord{
			ID:        uuid.New().String(),
			IPAddress: params.IP,
			Reason:    params.Reason,
			Source:    params.Source,
			Permanent: params.Permanent,
			BannedAt:  now,
			Country:   params.Country,
			City:      params.City,
		}
		if !params.Permanent {
			expires := now.Add(ttl)
			rec.ExpiresAt = &expires
		}
		sh.records[params.IP] = rec
		metrics.BansActive.Inc()

	case existing.Permanent && !params.Permanent:
		// Permanent is never weakened: a temporary re-ban is a no-op.
		out := *existing
		sh.mu.Unlock()
		return out, false

	case params.Permanent:
		existing.Permanent = true
		existing.ExpiresAt = nil
		existing.Reason = params.Reason
		existing.Source = params.Source
		rec = existing

	default:
		// Both temporary: keep whichever expiry is later.
		expires := now.Add(ttl)
		if existing.ExpiresAt == nil || expires.After(*existing.ExpiresAt) {
			existing.ExpiresAt = &expires
		}
		existing.Reason = params.Reason
		existing.Source = params.Source
		rec = existing
	}

	out := *rec
	sh.mu.Unlock()

	metrics.BansTotal.WithLabelValues(string(models.BanActionBan), string(params.Source)).Inc()
	r.audit.append(models.BanAuditEntry{
		ID:        uuid.New().String(),
		IPAddress: params.IP,
		Action:    models.BanActionBan,
		Reason:    out.Reason,
		Permanent: out.Permanent,
		At:        now,
	})
	if r.notifier != nil {
		r.notifier.BanApplied(out)
	}
	return out, created
}

// Unban removes any record for ip. Idempotent: unbanning an absent IP is a
// no-op, not an error.
func (r *Registry) Unban(ip string) bool {
	sh := r.shard(ip)
	sh.mu.Lock()
	_, ok := sh.records[ip]
	if ok {
		delete(sh.records, ip)
	}
	sh.mu.Unlock()

	if !ok {
		return false
	}

	metrics.BansActive.Dec()
	metrics.BansTotal.WithLabelValues(string(models.BanActionUnban), string(models.BanSourceManual)).Inc()
	r.audit.append(models.BanAuditEntry{
		ID:        uuid.New().String(),
		IPAddress: ip,
		Action:    models.BanActionUnban,
		At:        r.clock(),
	})
	if r.notifier != nil {
		r.notifier.BanLifted(ip)
	}
	return true
}

// Expire transitions a temporary ban out of the active set, but only if its
// expiry has actually passed at the time the shard lock is held. A ban that
// was concurrently renewed or made permanent survives the sweep.
func (r *Registry) Expire(ip string, now time.Time) bool {
	sh := r.shard(ip)
	sh.mu.Lock()
	rec, ok := sh.records[ip]
	if !ok || rec.Permanent || rec.ExpiresAt == nil || rec.ExpiresAt.After(now) {
		sh.mu.Unlock()
		return false
	}
	delete(sh.records, ip)
	sh.mu.Unlock()

	metrics.BansActive.Dec()
	metrics.BansTotal.WithLabelValues(string(models.BanActionExpire), string(rec.Source)).Inc()
	r.audit.append(models.BanAuditEntry{
		ID:        uuid.New().String(),
		IPAddress: ip,
		Action:    models.BanActionExpire,
		Reason:    rec.Reason,
		At:        now,
	})
	if r.notifier != nil {
		r.notifier.BanLifted(ip)
	}
	return true
}

// IsActive reports whether ip is currently banned. A temporary ban whose
// expiry has passed is inactive even before the reaper removes it.
func (r *Registry) IsActive(ip string) bool {
	now := r.clock()
	sh := r.shard(ip)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[ip]
	if !ok {
		return false
	}
	return rec.Permanent || (rec.ExpiresAt != nil && rec.ExpiresAt.After(now))
}

// Get returns the record for ip.
func (r *Registry) Get(ip string) (models.BanRecord, error) {
	sh := r.shard(ip)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[ip]
	if !ok {
		return models.BanRecord{}, engine.ErrBanNotFound
	}
	return *rec, nil
}

// FindByID returns the record with the given ban id.
func (r *Registry) FindByID(id string) (models.BanRecord, error) {
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for _, rec := range sh.records {
			if rec.ID == id {
				out := *rec
				sh.mu.Unlock()
				return out, nil
			}
		}
		sh.mu.Unlock()
	}
	return models.BanRecord{}, engine.ErrBanNotFound
}

// Count splits active records by kind.
func (r *Registry) Count() models.BanCounts {
	var counts models.BanCounts
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for _, rec := range sh.records {
			if rec.Permanent {
				counts.Permanent++
			} else {
				counts.Temporary++
			}
		}
		sh.mu.Unlock()
	}
	return counts
}

// List returns copies of all records, most recently banned first.
func (r *Registry) List() []models.BanRecord {
	var out []models.BanRecord
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for _, rec := range sh.records {
			out = append(out, *rec)
		}
		sh.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BannedAt.After(out[j].BannedAt)
	})
	return out
}

// ExpiredCandidates returns IPs whose temporary ban expiry has passed as of
// now. Each shard lock is held only while that shard is scanned, so the sweep
// never pauses ingestion or bans on other shards.
func (r *Registry) ExpiredCandidates(now time.Time) []string {
	var out []string
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for ip, rec := range sh.records {
			if !rec.Permanent && rec.ExpiresAt != nil && !rec.ExpiresAt.After(now) {
				out = append(out, ip)
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// History returns the most recent audit entries, newest first.
func (r *Registry) History(limit int) []models.BanAuditEntry {
	return r.audit.recent(limit)
}

// auditLog is a bounded ring of registry transitions.
type auditLog struct {
	mu      sync.Mutex
	entries []models.BanAuditEntry
	next    int
	full    bool
}

func newAuditLog(size int) *auditLog {
	return &auditLog{entries: make([]models.BanAuditEntry, size)}
}

func (a *auditLog) append(entry models.BanAuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries[a.next] = entry
	a.next = (a.next + 1) % len(a.entries)
	if a.next == 0 {
		a.full = true
	}
}

func (a *auditLog) recent(limit int) []models.BanAuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := a.next
	if a.full {
		size = len(a.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]models.BanAuditEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (a.next - i + len(a.entries)) % len(a.entries)
		out = append(out, a.entries[idx])
	}
	return out
}
