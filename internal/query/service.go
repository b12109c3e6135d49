package query

import (
	"context"
	"fmt"

	"github.com/gatewatch-systems/gatewatch/internal/models"
	"github.com/gatewatch-systems/gatewatch/internal/repository"
)

// Service is the read path over raw event history: filterable, paginated,
// reverse-chronological. Every page reflects a single consistent cut of the
// event log even while ingestion continues.
type Service struct {
	events repository.EventStore
}

// NewService creates a query service over the event store.
func NewService(events repository.EventStore) *Service {
	return &Service{events: events}
}

// Query returns one page of events matching the filter. A page number past
// the end of the result set yields an empty page, not an error.
func (s *Service) Query(ctx context.Context, filter *models.EventFilter) (*models.EventPage, error) {
	events, total, err := s.events.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if events == nil {
		events = []*models.Event{}
	}

	return &models.EventPage{
		Events: events,
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}
