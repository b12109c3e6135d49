package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gatewatch-systems/gatewatch/internal/models"
)

// Rule is an automatic ban policy: when Threshold events of at least
// MinSeverity arrive from the same source IP within Window, the IP is banned
// for BanTTL (or permanently).
type Rule struct {
	Name        string
	Threshold   int
	Window      time.Duration
	MinSeverity int
	EventTypes  []models.EventType // empty means any type
	BanTTL      time.Duration
	Permanent   bool
}

// ruleFile is the yaml shape of a rule. Durations are strings ("5m", "24h").
type ruleFile struct {
	Name        string   `yaml:"name"`
	Threshold   int      `yaml:"threshold"`
	Window      string   `yaml:"window"`
	MinSeverity int      `yaml:"min_severity"`
	EventTypes  []string `yaml:"event_types"`
	BanTTL      string   `yaml:"ban_ttl"`
	Permanent   bool     `yaml:"permanent"`
}

// LoadRules reads every .yaml/.yml file in dir as one rule. A missing or
// empty dir yields no rules and no error.
func LoadRules(dir string) ([]Rule, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	var rules []Rule
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read rule %s: %w", entry.Name(), err)
		}
		rule, err := parseRule(data)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", entry.Name(), err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRule(data []byte) (Rule, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return Rule{}, fmt.Errorf("parse yaml: %w", err)
	}
	if rf.Name == "" {
		return Rule{}, fmt.Errorf("rule name is required")
	}
	if rf.Threshold < 1 {
		return Rule{}, fmt.Errorf("threshold must be at least 1")
	}

	window, err := time.ParseDuration(rf.Window)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid window %q: %w", rf.Window, err)
	}

	rule := Rule{
		Name:        rf.Name,
		Threshold:   rf.Threshold,
		Window:      window,
		MinSeverity: rf.MinSeverity,
		Permanent:   rf.Permanent,
	}
	if rf.BanTTL != "" {
		ttl, err := time.ParseDuration(rf.BanTTL)
		if err != nil {
			return Rule{}, fmt.Errorf("invalid ban_ttl %q: %w", rf.BanTTL, err)
		}
		rule.BanTTL = ttl
	}
	for _, t := range rf.EventTypes {
		et := models.EventType(t)
		if !models.ValidEventTypes[et] {
			return Rule{}, fmt.Errorf("unknown event type %q", t)
		}
		rule.EventTypes = append(rule.EventTypes, et)
	}
	return rule, nil
}

// BanDecision is a rule firing for a source IP.
type BanDecision struct {
	IP     string
	Rule   Rule
	Reason string
}

// RuleEvaluator tracks recent event timestamps per source IP for each rule
// and fires a ban decision when a rule's threshold is met within its window.
type RuleEvaluator struct {
	trackers []*ruleTracker
}

// trackerSweepInterval is how many tracked events pass between full sweeps of
// a tracker's hit map. Bounds the map when high-cardinality sources send a few
// sub-threshold events each and never return.
const trackerSweepInterval = 1024

type ruleTracker struct {
	rule       Rule
	mu         sync.Mutex
	hits       map[string][]time.Time
	sinceSweep int
}

// NewRuleEvaluator creates an evaluator over the given rules.
func NewRuleEvaluator(rules []Rule) *RuleEvaluator {
	e := &RuleEvaluator{}
	for _, rule := range rules {
		e.trackers = append(e.trackers, &ruleTracker{
			rule: rule,
			hits: make(map[string][]time.Time),
		})
	}
	return e
}

// Observe feeds one event through every rule and returns the decisions that
// fired. A rule's window for an IP resets once it fires, so a sustained burst
// produces one ban (extended by later re-bans) rather than one per event.
func (e *RuleEvaluator) Observe(event *models.Event) []BanDecision {
	var decisions []BanDecision
	for _, t := range e.trackers {
		if d, ok := t.observe(event); ok {
			decisions = append(decisions, d)
		}
	}
	return decisions
}

func (t *ruleTracker) observe(event *models.Event) (BanDecision, bool) {
	if event.Severity < t.rule.MinSeverity {
		return BanDecision{}, false
	}
	if len(t.rule.EventTypes) > 0 {
		found := false
		for _, et := range t.rule.EventTypes {
			if event.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return BanDecision{}, false
		}
	}

	cutoff := event.Timestamp.Add(-t.rule.Window)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sinceSweep++
	if t.sinceSweep >= trackerSweepInterval {
		t.sinceSweep = 0
		t.sweep(cutoff)
	}

	hits := t.hits[event.SrcIP]
	kept := hits[:0]
	for _, ts := range hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, event.Timestamp)

	if len(kept) >= t.rule.Threshold {
		delete(t.hits, event.SrcIP)
		return BanDecision{
			IP:   event.SrcIP,
			Rule: t.rule,
			Reason: fmt.Sprintf("rule %q: %d events with severity >= %d within %s",
				t.rule.Name, t.rule.Threshold, t.rule.MinSeverity, t.rule.Window),
		}, true
	}

	t.hits[event.SrcIP] = kept
	return BanDecision{}, false
}

// sweep drops every source whose hits all fell out of the window. Called with
// t.mu held. Without it, sources that go quiet would stay in the map forever:
// observe only prunes the entry for the IP it is handling.
func (t *ruleTracker) sweep(cutoff time.Time) {
	for ip, hits := range t.hits {
		live := false
		for _, ts := range hits {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(t.hits, ip)
		}
	}
}
