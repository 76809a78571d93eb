// Package poller rescans the prediction log on a fixed interval and fans
// each result out to the store, history, alerts, console and WebSocket hub.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rulstream/rulstream/monitor/internal/alerts"
	"github.com/rulstream/rulstream/monitor/internal/config"
	"github.com/rulstream/rulstream/monitor/internal/health"
	"github.com/rulstream/rulstream/monitor/internal/render"
	"github.com/rulstream/rulstream/monitor/internal/scraper"
	"github.com/rulstream/rulstream/monitor/internal/store"
	"github.com/rulstream/rulstream/pkg/types"
)

// Publisher receives every snapshot after it is stored.
type Publisher interface {
	Publish(*store.Snapshot)
}

// Deps are the poller's collaborators. Only Store is required.
type Deps struct {
	Store   *store.Store
	History *store.History
	Alerts  *alerts.Engine
	Scraper *scraper.Scraper
	Hub     Publisher
	// Console receives the rendered table; nil disables rendering.
	Console io.Writer
}

// Settings are the reloadable knobs.
type Settings struct {
	LogPath     string
	Interval    time.Duration
	Thresholds  health.Thresholds
	DeltaMode   string
	ClearScreen bool
}

// SettingsFrom extracts Settings from a loaded config.
func SettingsFrom(m config.MonitorConfig) Settings {
	return Settings{
		LogPath:  m.LogPath,
		Interval: m.PollInterval,
		Thresholds: health.Thresholds{
			Healthy: m.Thresholds.Healthy,
			Minor:   m.Thresholds.Minor,
			Major:   m.Thresholds.Major,
		},
		DeltaMode:   m.DeltaMode,
		ClearScreen: m.ClearScreen,
	}
}

func (s Settings) validate() error {
	if s.LogPath == "" {
		return errors.New("poller: log path is empty")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("poller: interval must be positive, got %s", s.Interval)
	}
	return s.Thresholds.Validate()
}

// Poller runs the poll loop. Update may be called concurrently with Run.
type Poller struct {
	deps    Deps
	tracker *health.Tracker
	now     func() time.Time

	mu       sync.Mutex
	settings Settings
	changed  chan struct{}
	// prevRecords and prevHead detect a log rewritten between polls.
	prevRecords int
	prevHead    *types.PredictionRecord
}

// New validates s and returns a Poller.
func New(deps Deps, s Settings) (*Poller, error) {
	if deps.Store == nil {
		return nil, errors.New("poller: store is required")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &Poller{
		deps:     deps,
		tracker:  health.NewTracker(),
		now:      time.Now,
		settings: s,
		changed:  make(chan struct{}, 1),
	}, nil
}

// Update swaps in new settings. The next tick uses them; a changed interval
// resets the ticker. Invalid settings are rejected and the old ones kept.
func (p *Poller) Update(s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}
	p.mu.Lock()
	old := p.settings
	p.settings = s
	if old.LogPath != s.LogPath {
		p.prevRecords, p.prevHead = 0, nil
	}
	p.mu.Unlock()

	if old.DeltaMode != s.DeltaMode || old.LogPath != s.LogPath {
		p.tracker.Reset()
	}
	if old.LogPath != s.LogPath && p.deps.History != nil {
		p.deps.History.Forget()
	}
	select {
	case p.changed <- struct{}{}:
	default:
	}
	slog.Info("poller: settings updated",
		"interval", s.Interval,
		"thresholds", fmt.Sprintf("%v/%v/%v", s.Thresholds.Healthy, s.Thresholds.Minor, s.Thresholds.Major),
		"delta_mode", s.DeltaMode,
	)
	return nil
}

func (p *Poller) current() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Run polls immediately, then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	interval := p.current().Interval
	t := time.NewTicker(interval)
	defer t.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.changed:
			if next := p.current().Interval; next != interval {
				interval = next
				t.Reset(interval)
			}
		case <-t.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one rescan and returns the stored snapshot, or nil when the
// log could not be read. Poll must not be called concurrently with itself.
func (p *Poller) Poll(ctx context.Context) *store.Snapshot {
	s := p.current()

	snap := &store.Snapshot{}
	f, err := health.RescanFile(s.LogPath, s.Thresholds, p.now().UTC())
	switch {
	case errors.Is(err, types.ErrNoLog):
		snap.NoData = true
		p.restart(0, nil)
	case err != nil:
		// Keep showing the previous table; the next tick retries.
		slog.Warn("poller: rescan failed", "path", s.LogPath, "err", err)
		return nil
	default:
		p.restart(f.Scan.Records, f.Head)
		if s.DeltaMode == config.DeltaModePoll {
			p.tracker.Apply(f)
		}
		snap.Fleet = f
		if f.Scan.Malformed > 0 {
			slog.Debug("poller: skipped malformed lines", "count", f.Scan.Malformed)
		}
	}

	if p.deps.Scraper != nil {
		stats, err := p.deps.Scraper.Scrape(ctx)
		if err != nil {
			slog.Debug("poller: pipeline scrape failed", "err", err)
		} else {
			snap.Pipeline = stats
		}
	}

	p.deps.Store.Put(snap)

	if snap.Fleet != nil {
		if p.deps.History != nil {
			if n, err := p.deps.History.Record(ctx, snap.Fleet); err != nil {
				slog.Warn("poller: history write failed", "err", err)
			} else if n > 0 {
				slog.Debug("poller: history recorded", "engines", n)
			}
		}
		if p.deps.Alerts != nil {
			p.deps.Alerts.Evaluate(snap.Fleet)
		}
	}

	if p.deps.Console != nil {
		opts := render.Options{ClearScreen: s.ClearScreen, LogPath: s.LogPath}
		if err := render.Snapshot(p.deps.Console, snap, opts); err != nil {
			slog.Warn("poller: render failed", "err", err)
		}
	}
	if p.deps.Hub != nil {
		p.deps.Hub.Publish(snap)
	}
	return snap
}

// restart forgets per-engine state when a new pipeline run rewrote the log:
// either it shrank or its first record changed.
func (p *Poller) restart(records int, head *types.PredictionRecord) {
	p.mu.Lock()
	prev := p.prevRecords
	rewritten := records < prev || (p.prevHead != nil && (head == nil || *head != *p.prevHead))
	p.prevRecords, p.prevHead = records, head
	p.mu.Unlock()

	if rewritten {
		slog.Info("poller: prediction log restarted", "records", records, "previous", prev)
		p.tracker.Reset()
		if p.deps.History != nil {
			p.deps.History.Forget()
		}
	}
}
