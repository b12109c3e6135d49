package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/gatewatch-systems/gatewatch/internal/models"
)

// Store maintains rolling event counters: a fixed ring of time buckets (event
// count plus per-country tallies) and an exact unique-IP tracker spanning the
// retained horizon. Writes touch a single bucket under its own lock so
// concurrent recording never contends on a store-wide lock.
type Store struct {
	bucketSize   time.Duration
	recentWindow time.Duration
	topN         int
	buckets      []*bucket

	ipMu sync.Mutex
	ips  map[string]time.Time // srcIP -> last seen
}

type bucket struct {
	mu        sync.Mutex
	start     time.Time // zero when the slot has never been used
	count     int64
	countries map[string]int64
}

// Config sizes the store.
type Config struct {
	BucketCount  int
	BucketSize   time.Duration
	RecentWindow time.Duration
	TopCountries int
}

// NewStore creates an aggregation store. Zero config fields fall back to a
// 24-bucket hourly ring with a one hour recent window and top 10 countries.
func NewStore(cfg Config) *Store {
	if cfg.BucketCount <= 0 {
		cfg.BucketCount = 24
	}
	if cfg.BucketSize <= 0 {
		cfg.BucketSize = time.Hour
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = time.Hour
	}
	if cfg.TopCountries <= 0 {
		cfg.TopCountries = 10
	}

	buckets := make([]*bucket, cfg.BucketCount)
	for i := range buckets {
		buckets[i] = &bucket{countries: make(map[string]int64)}
	}

	return &Store{
		bucketSize:   cfg.BucketSize,
		recentWindow: cfg.RecentWindow,
		topN:         cfg.TopCountries,
		buckets:      buckets,
		ips:          make(map[string]time.Time),
	}
}

// Horizon is the total time span the ring retains.
func (s *Store) Horizon() time.Duration {
	return time.Duration(len(s.buckets)) * s.bucketSize
}

// Record folds an event into the rolling counters. O(1) amortized; the only
// non-constant work is the unique-IP prune that runs once per bucket rotation.
func (s *Store) Record(event *models.Event) {
	ts := event.Timestamp
	start := ts.Truncate(s.bucketSize)
	b := s.buckets[s.slot(start)]

	rotated := false
	b.mu.Lock()
	switch {
	case b.start.Equal(start):
		// Current bucket for this slot.
	case b.start.After(start):
		// Event older than the bucket now occupying the slot. It fell off the
		// ring; counters no longer retain it.
		b.mu.Unlock()
		return
	default:
		// Slot advanced past a boundary: evict the old bucket's counts and
		// open a fresh one.
		b.start = start
		b.count = 0
		b.countries = make(map[string]int64)
		rotated = true
	}
	b.count++
	if event.Country != "" {
		b.countries[event.Country]++
	}
	b.mu.Unlock()

	s.trackIP(event.SrcIP, ts, rotated)
}

func (s *Store) slot(start time.Time) int {
	idx := int(start.UnixNano()/int64(s.bucketSize)) % len(s.buckets)
	if idx < 0 {
		idx += len(s.buckets)
	}
	return idx
}

func (s *Store) trackIP(ip string, seen time.Time, prune bool) {
	if ip == "" {
		return
	}
	s.ipMu.Lock()
	defer s.ipMu.Unlock()

	if last, ok := s.ips[ip]; !ok || seen.After(last) {
		s.ips[ip] = seen
	}
	if prune {
		cutoff := seen.Add(-s.Horizon())
		for addr, last := range s.ips {
			if last.Before(cutoff) {
				delete(s.ips, addr)
			}
		}
	}
}

// Snapshot is the store's contribution to the overview object: exact totals
// within the retained horizon as of the given time. Counters are copied under
// short per-bucket critical sections; the country sort happens on the copy.
type Snapshot struct {
	TotalEvents  int64
	UniqueIPs    int64
	RecentEvents int64
	TopCountries []models.CountryCount
}

// Snapshot computes rolling totals as of asOf.
func (s *Store) Snapshot(asOf time.Time) Snapshot {
	horizonCutoff := asOf.Add(-s.Horizon())
	// Buckets are coarse: include every bucket overlapping the recent window.
	recentCutoff := asOf.Add(-s.recentWindow - s.bucketSize)

	var snap Snapshot
	countries := make(map[string]int64)

	for _, b := range s.buckets {
		b.mu.Lock()
		start, count := b.start, b.count
		if !start.IsZero() && start.After(horizonCutoff) && !start.After(asOf) {
			snap.TotalEvents += count
			if start.After(recentCutoff) {
				snap.RecentEvents += count
			}
			for c, n := range b.countries {
				countries[c] += n
			}
		}
		b.mu.Unlock()
	}

	snap.UniqueIPs = s.countIPs(horizonCutoff)
	snap.TopCountries = topCountries(countries, s.topN)
	return snap
}

func (s *Store) countIPs(cutoff time.Time) int64 {
	s.ipMu.Lock()
	defer s.ipMu.Unlock()

	var n int64
	for _, last := range s.ips {
		if !last.Before(cutoff) {
			n++
		}
	}
	return n
}

// topCountries sorts tallies descending by count, ties broken by country code
// ascending, truncated to limit.
func topCountries(tallies map[string]int64, limit int) []models.CountryCount {
	out := make([]models.CountryCount, 0, len(tallies))
	for country, count := range tallies {
		out = append(out, models.CountryCount{Country: country, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Country < out[j].Country
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
