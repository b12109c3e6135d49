package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewatch-systems/gatewatch/internal/models"
)

var ruleBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ruleEvent(ts time.Time, srcIP string, severity int, eventType models.EventType) *models.Event {
	return &models.Event{
		Timestamp: ts,
		EventType: eventType,
		SrcIP:     srcIP,
		DestIP:    "10.0.0.1",
		Protocol:  "TCP",
		Severity:  severity,
		Action:    models.ActionAllowed,
	}
}

func TestRuleFiresAtThreshold(t *testing.T) {
	e := NewRuleEvaluator([]Rule{{
		Name:        "burst",
		Threshold:   3,
		Window:      5 * time.Minute,
		MinSeverity: 3,
		BanTTL:      time.Hour,
	}})

	assert.Empty(t, e.Observe(ruleEvent(ruleBase, "203.0.113.5", 4, models.EventTypeAlert)))
	assert.Empty(t, e.Observe(ruleEvent(ruleBase.Add(time.Minute), "203.0.113.5", 4, models.EventTypeAlert)))

	decisions := e.Observe(ruleEvent(ruleBase.Add(2*time.Minute), "203.0.113.5", 4, models.EventTypeAlert))
	require.Len(t, decisions, 1)
	assert.Equal(t, "203.0.113.5", decisions[0].IP)
	assert.Equal(t, "burst", decisions[0].Rule.Name)
	assert.Contains(t, decisions[0].Reason, "burst")
}

func TestRuleWindowResetsAfterFiring(t *testing.T) {
	e := NewRuleEvaluator([]Rule{{
		Name: "burst", Threshold: 2, Window: 5 * time.Minute, MinSeverity: 1,
	}})

	e.Observe(ruleEvent(ruleBase, "1.2.3.4", 3, models.EventTypeAlert))
	require.Len(t, e.Observe(ruleEvent(ruleBase.Add(time.Second), "1.2.3.4", 3, models.EventTypeAlert)), 1)

	// The counter was reset; the very next event does not re-fire.
	assert.Empty(t, e.Observe(ruleEvent(ruleBase.Add(2*time.Second), "1.2.3.4", 3, models.EventTypeAlert)))
}

func TestRuleIgnoresEventsOutsideWindow(t *testing.T) {
	e := NewRuleEvaluator([]Rule{{
		Name: "burst", Threshold: 2, Window: time.Minute, MinSeverity: 1,
	}})

	e.Observe(ruleEvent(ruleBase, "1.2.3.4", 3, models.EventTypeAlert))
	// Second event arrives after the first aged out.
	assert.Empty(t, e.Observe(ruleEvent(ruleBase.Add(2*time.Minute), "1.2.3.4", 3, models.EventTypeAlert)))
}

func TestRuleSeverityFloor(t *testing.T) {
	e := NewRuleEvaluator([]Rule{{
		Name: "sev", Threshold: 2, Window: 5 * time.Minute, MinSeverity: 3,
	}})

	e.Observe(ruleEvent(ruleBase, "1.2.3.4", 2, models.EventTypeAlert))
	e.Observe(ruleEvent(ruleBase.Add(time.Second), "1.2.3.4", 2, models.EventTypeAlert))
	// Low-severity events never accumulate.
	assert.Empty(t, e.Observe(ruleEvent(ruleBase.Add(2*time.Second), "1.2.3.4", 2, models.EventTypeAlert)))
}

func TestRuleEventTypeFilter(t *testing.T) {
	e := NewRuleEvaluator([]Rule{{
		Name: "ssh-only", Threshold: 2, Window: 5 * time.Minute, MinSeverity: 1,
		EventTypes: []models.EventType{models.EventTypeSSH},
	}})

	e.Observe(ruleEvent(ruleBase, "1.2.3.4", 3, models.EventTypeHTTP))
	e.Observe(ruleEvent(ruleBase.Add(time.Second), "1.2.3.4", 3, models.EventTypeSSH))

	decisions := e.Observe(ruleEvent(ruleBase.Add(2*time.Second), "1.2.3.4", 3, models.EventTypeSSH))
	require.Len(t, decisions, 1, "only ssh events count toward the threshold")
}

func TestRuleTracksIPsIndependently(t *testing.T) {
	e := NewRuleEvaluator([]Rule{{
		Name: "burst", Threshold: 2, Window: 5 * time.Minute, MinSeverity: 1,
	}})

	e.Observe(ruleEvent(ruleBase, "1.1.1.1", 3, models.EventTypeAlert))
	assert.Empty(t, e.Observe(ruleEvent(ruleBase.Add(time.Second), "2.2.2.2", 3, models.EventTypeAlert)))

	require.Len(t, e.Observe(ruleEvent(ruleBase.Add(2*time.Second), "1.1.1.1", 3, models.EventTypeAlert)), 1)
}

func TestRuleEvictsIdleSources(t *testing.T) {
	e := NewRuleEvaluator([]Rule{{
		Name: "burst", Threshold: 5, Window: time.Minute, MinSeverity: 1,
	}})
	tracker := e.trackers[0]

	// A scan-style feed: thousands of distinct sources sending a single
	// sub-threshold event each, one second apart.
	total := 3 * trackerSweepInterval
	for i := 0; i < total; i++ {
		ip := fmt.Sprintf("10.%d.%d.%d", i>>16&0xff, i>>8&0xff, i&0xff)
		e.Observe(ruleEvent(ruleBase.Add(time.Duration(i)*time.Second), ip, 3, models.EventTypeAlert))
	}

	// Sources that went quiet for longer than the window are dropped even
	// though they never send another event. Only the last window's worth of
	// sources may still be tracked.
	assert.Less(t, len(tracker.hits), total/10)
	assert.NotContains(t, tracker.hits, "10.0.0.0")
	last := total - 1
	assert.Contains(t, tracker.hits, fmt.Sprintf("10.%d.%d.%d", last>>16&0xff, last>>8&0xff, last&0xff))
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	content := `
name: test-rule
threshold: 4
window: 2m
min_severity: 3
event_types:
  - ssh
  - alert
ban_ttl: 6h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a rule"), 0o644))

	rules, err := LoadRules(dir)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	rule := rules[0]
	assert.Equal(t, "test-rule", rule.Name)
	assert.Equal(t, 4, rule.Threshold)
	assert.Equal(t, 2*time.Minute, rule.Window)
	assert.Equal(t, 3, rule.MinSeverity)
	assert.Equal(t, []models.EventType{models.EventTypeSSH, models.EventTypeAlert}, rule.EventTypes)
	assert.Equal(t, 6*time.Hour, rule.BanTTL)
	assert.False(t, rule.Permanent)
}

func TestLoadRulesMissingDir(t *testing.T) {
	rules, err := LoadRules("/nonexistent/path")
	assert.NoError(t, err)
	assert.Nil(t, rules)

	rules, err = LoadRules("")
	assert.NoError(t, err)
	assert.Nil(t, rules)
}

func TestLoadRulesInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "threshold: 3\nwindow: 5m\n"},
		{"zero threshold", "name: x\nthreshold: 0\nwindow: 5m\n"},
		{"bad window", "name: x\nthreshold: 3\nwindow: sometimes\n"},
		{"bad ban_ttl", "name: x\nthreshold: 3\nwindow: 5m\nban_ttl: never\n"},
		{"unknown event type", "name: x\nthreshold: 3\nwindow: 5m\nevent_types: [bogus]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "rule.yaml"), []byte(tt.content), 0o644))
			_, err := LoadRules(dir)
			assert.Error(t, err)
		})
	}
}
