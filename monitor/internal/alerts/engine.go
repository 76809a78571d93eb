package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rulstream/rulstream/monitor/internal/config"
	"github.com/rulstream/rulstream/monitor/internal/health"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert is one alert event for one engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	EngineID   int        `json:"engine_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates rules against each polled fleet. It is safe for
// concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig
	client   *http.Client
	now      func() time.Time // injectable for deterministic tests

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:engineID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	wg       sync.WaitGroup       // in-flight deliveries
}

// New parses cfg's rules. An Engine with no rules is valid and never fires.
func New(cfg config.AlertsConfig) (*Engine, error) {
	rules, err := parseRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	return &Engine{
		rules:    rules,
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}, nil
}

// Reload replaces the rules and webhooks. Alerts of rules that no longer
// exist resolve on the next Evaluate. On error the engine is unchanged.
func (e *Engine) Reload(cfg config.AlertsConfig) error {
	rules, err := parseRules(cfg.Rules)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.rules = rules
	e.webhooks = cfg.Webhooks
	e.mu.Unlock()
	slog.Info("alerts: rules reloaded", "rules", len(rules), "webhooks", len(cfg.Webhooks))
	return nil
}

func parseRules(cfg []config.AlertRule) ([]rule, error) {
	rules := make([]rule, 0, len(cfg))
	for _, r := range cfg {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		if r.Severity == "" {
			r.Severity = "warning"
		}
		if r.Cooldown <= 0 {
			r.Cooldown = defaultCooldown
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
	}
	return rules, nil
}

func key(ruleName string, unit int) string {
	return ruleName + ":" + strconv.Itoa(unit)
}

// Evaluate tests every rule against every engine in f. Matching engines fire
// (subject to the rule cooldown); firing alerts whose condition no longer
// holds, or whose engine left the fleet, are resolved. Webhook delivery runs
// in the background.
func (e *Engine) Evaluate(f *health.Fleet) {
	now := e.now()
	var deliveries []Alert

	e.mu.Lock()
	if len(e.rules) == 0 && len(e.active) == 0 {
		e.mu.Unlock()
		return
	}
	hooks := e.webhooks
	seen := make(map[string]bool)
	for _, r := range e.rules {
		for _, eng := range f.Engines {
			k := key(r.Name, eng.Unit)
			seen[k] = true
			fires, value := r.cond.eval(eng)

			if fires {
				if _, firing := e.active[k]; firing {
					continue
				}
				if now.Sub(e.lastFire[k]) <= r.Cooldown {
					continue
				}
				a := &Alert{
					ID:       uuid.NewString(),
					RuleName: r.Name,
					EngineID: eng.Unit,
					Severity: r.Severity,
					Value:    value,
					Message: fmt.Sprintf("[%s] %s fired on engine %d: %s (rul=%.1f, status=%s)",
						r.Severity, r.Name, eng.Unit, r.Condition, eng.RUL, eng.Status),
					FiredAt: now,
					State:   StateFiring,
				}
				e.active[k] = a
				e.lastFire[k] = now
				deliveries = append(deliveries, *a)
				slog.Warn("alert fired", "rule", r.Name, "engine", eng.Unit, "value", value, "severity", r.Severity)
				continue
			}

			if a, ok := e.active[k]; ok {
				deliveries = append(deliveries, *e.resolve(k, a, now))
				slog.Info("alert resolved", "rule", r.Name, "engine", eng.Unit)
			}
		}
	}
	for k, a := range e.active {
		if !seen[k] {
			deliveries = append(deliveries, *e.resolve(k, a, now))
			slog.Info("alert resolved, engine no longer reported", "rule", a.RuleName, "engine", a.EngineID)
		}
	}
	e.mu.Unlock()

	for i := range deliveries {
		a := deliveries[i]
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.deliver(hooks, &a)
		}()
	}
}

// resolve must be called with mu held.
func (e *Engine) resolve(k string, a *Alert, now time.Time) *Alert {
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, k)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	return a
}

// Active returns copies of all firing alerts plus alerts resolved within the
// past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FiredAt.Equal(out[j].FiredAt) {
			return out[i].FiredAt.After(out[j].FiredAt)
		}
		return out[i].EngineID < out[j].EngineID
	})
	return out
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}
