package repository

import (
	"context"
	"strings"
	"time"

	"github.com/gatewatch-systems/gatewatch/internal/models"
)

// EventStore holds raw events for the query path. Events are immutable once
// inserted and are removed only by retention pruning.
type EventStore interface {
	Insert(ctx context.Context, event *models.Event) error
	// Search returns one page of matching events in reverse-chronological
	// order plus the total match count. The page reflects a single consistent
	// cut of the event log.
	Search(ctx context.Context, filter *models.EventFilter) ([]*models.Event, int, error)
	// Prune removes events with a timestamp before the cutoff and returns how
	// many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
	// LastID returns the highest event ID ever inserted, or 0 for an empty
	// store. Used to seed the ID counter so restarts keep IDs unique against
	// a durable archive.
	LastID(ctx context.Context) (uint64, error)
	Close() error
}

// matches applies the query filter contract: substring match on src_ip,
// dest_ip or signature, exact match on event type.
func matches(event *models.Event, filter *models.EventFilter) bool {
	if filter.Type != "" && event.EventType != filter.Type {
		return false
	}
	if filter.Search == "" {
		return true
	}
	return strings.Contains(event.SrcIP, filter.Search) ||
		strings.Contains(event.DestIP, filter.Search) ||
		strings.Contains(event.Signature, filter.Search)
}
