package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewatch-systems/gatewatch/internal/models"
)

var memBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func insertEvents(t *testing.T, s *InMemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.Insert(context.Background(), &models.Event{
			ID:        uint64(i + 1),
			Timestamp: memBase.Add(time.Duration(i) * time.Second),
			EventType: models.EventTypeAlert,
			SrcIP:     fmt.Sprintf("10.0.0.%d", i%10),
			DestIP:    "198.51.100.1",
			Signature: fmt.Sprintf("SIG-%d", i),
			Protocol:  "TCP",
			Severity:  3,
			Action:    models.ActionAllowed,
		})
		require.NoError(t, err)
	}
}

func TestSearchNewestFirst(t *testing.T) {
	s := NewInMemoryStore(0)
	insertEvents(t, s, 5)

	events, total, err := s.Search(context.Background(), &models.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, events, 5)
	assert.Equal(t, uint64(5), events[0].ID)
	assert.Equal(t, uint64(1), events[4].ID)
}

func TestSearchPagination(t *testing.T) {
	s := NewInMemoryStore(0)
	insertEvents(t, s, 25)

	events, total, err := s.Search(context.Background(), &models.EventFilter{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, events, 10)
	assert.Equal(t, uint64(15), events[0].ID)
	assert.Equal(t, uint64(6), events[9].ID)
}

func TestSearchPageBeyondRange(t *testing.T) {
	s := NewInMemoryStore(0)
	insertEvents(t, s, 5)

	events, total, err := s.Search(context.Background(), &models.EventFilter{Page: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, events, "beyond-range page is empty, not an error")
}

func TestSearchSubstringFilter(t *testing.T) {
	s := NewInMemoryStore(0)
	insertEvents(t, s, 20)

	// Matches src_ip 10.0.0.7, hit by events 8 and 18.
	events, total, err := s.Search(context.Background(), &models.EventFilter{Search: "0.7"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "10.0.0.7", e.SrcIP)
	}
}

func TestSearchSignatureFilter(t *testing.T) {
	s := NewInMemoryStore(0)
	insertEvents(t, s, 20)

	_, total, err := s.Search(context.Background(), &models.EventFilter{Search: "SIG-19"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSearchTypeFilter(t *testing.T) {
	s := NewInMemoryStore(0)
	insertEvents(t, s, 5)
	require.NoError(t, s.Insert(context.Background(), &models.Event{
		ID:        100,
		Timestamp: memBase.Add(time.Hour),
		EventType: models.EventTypeSSH,
		SrcIP:     "10.0.0.1",
		DestIP:    "198.51.100.1",
	}))

	events, total, err := s.Search(context.Background(), &models.EventFilter{Type: models.EventTypeSSH})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(100), events[0].ID)
}

func TestSearchNormalizesPaging(t *testing.T) {
	s := NewInMemoryStore(0)
	insertEvents(t, s, 3)

	events, _, err := s.Search(context.Background(), &models.EventFilter{Page: -1, Limit: 1000})
	require.NoError(t, err)
	// Bad paging falls back to page 1, limit 50.
	require.Len(t, events, 3)
	assert.Equal(t, uint64(3), events[0].ID)
}

func TestInsertEvictsOldestOverCapacity(t *testing.T) {
	s := NewInMemoryStore(10)
	insertEvents(t, s, 15)

	events, total, err := s.Search(context.Background(), &models.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	assert.Equal(t, uint64(15), events[0].ID)
	assert.Equal(t, uint64(6), events[9].ID)
}

func TestLastID(t *testing.T) {
	s := NewInMemoryStore(0)

	id, err := s.LastID(context.Background())
	require.NoError(t, err)
	assert.Zero(t, id, "empty store")

	insertEvents(t, s, 7)
	id, err = s.LastID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestPrune(t *testing.T) {
	s := NewInMemoryStore(0)
	insertEvents(t, s, 10)

	removed, err := s.Prune(context.Background(), memBase.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5, removed)

	_, total, err := s.Search(context.Background(), &models.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestPruneNothingToRemove(t *testing.T) {
	s := NewInMemoryStore(0)
	insertEvents(t, s, 3)

	removed, err := s.Prune(context.Background(), memBase.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)
}
