package poller

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulstream/rulstream/monitor/internal/alerts"
	"github.com/rulstream/rulstream/monitor/internal/config"
	"github.com/rulstream/rulstream/monitor/internal/health"
	"github.com/rulstream/rulstream/monitor/internal/store"
)

type capture struct {
	mu    sync.Mutex
	snaps []*store.Snapshot
}

func (c *capture) Publish(s *store.Snapshot) {
	c.mu.Lock()
	c.snaps = append(c.snaps, s)
	c.mu.Unlock()
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func settings(path string) Settings {
	return Settings{
		LogPath:    path,
		Interval:   10 * time.Millisecond,
		Thresholds: health.DefaultThresholds,
		DeltaMode:  config.DeltaModeRescan,
	}
}

func writeLog(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

// --- construction -----------------------------------------------------------

func TestNew_Validates(t *testing.T) {
	_, err := New(Deps{}, settings("x.log"))
	assert.Error(t, err, "missing store")

	bad := settings("x.log")
	bad.Interval = 0
	_, err = New(Deps{Store: store.New()}, bad)
	assert.Error(t, err)

	bad = settings("x.log")
	bad.Thresholds = health.Thresholds{Healthy: 10, Minor: 50, Major: 20}
	_, err = New(Deps{Store: store.New()}, bad)
	assert.Error(t, err)
}

func TestSettingsFrom(t *testing.T) {
	s := SettingsFrom(config.MonitorConfig{
		LogPath:      "p.log",
		PollInterval: 5 * time.Second,
		Thresholds:   config.ThresholdsConfig{Healthy: 100, Minor: 50, Major: 10},
		DeltaMode:    config.DeltaModePoll,
		ClearScreen:  true,
	})
	assert.Equal(t, health.Thresholds{Healthy: 100, Minor: 50, Major: 10}, s.Thresholds)
	assert.Equal(t, 5*time.Second, s.Interval)
	assert.True(t, s.ClearScreen)
}

// --- Poll -------------------------------------------------------------------

func TestPoll_NoLog(t *testing.T) {
	st := store.New()
	pub := &capture{}
	var console bytes.Buffer
	p, err := New(Deps{Store: st, Hub: pub, Console: &console}, settings(filepath.Join(t.TempDir(), "missing.log")))
	require.NoError(t, err)

	snap := p.Poll(context.Background())
	require.NotNil(t, snap)
	assert.True(t, snap.NoData)
	assert.Nil(t, snap.Fleet)

	latest, ok := st.Latest()
	require.True(t, ok)
	assert.True(t, latest.NoData)
	assert.Equal(t, 1, pub.count())
	assert.Contains(t, console.String(), "no predictions yet")
}

func TestPoll_BuildsFleetAndFansOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.log")
	writeLog(t, path,
		`{"unit":1,"cycle":1,"rul":130}`,
		`{"unit":2,"cycle":1,"rul":40}`,
		`not json`,
		`{"unit":2,"cycle":2,"rul":15}`,
	)

	al, err := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "near-failure", Condition: "status == broken", Severity: "critical"},
	}})
	require.NoError(t, err)
	hist, err := store.OpenHistory(filepath.Join(t.TempDir(), "history.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	st := store.New()
	pub := &capture{}
	var console bytes.Buffer
	p, err := New(Deps{Store: st, History: hist, Alerts: al, Hub: pub, Console: &console}, settings(path))
	require.NoError(t, err)

	snap := p.Poll(context.Background())
	require.NotNil(t, snap)
	require.NotNil(t, snap.Fleet)
	require.Len(t, snap.Fleet.Engines, 2)
	assert.Equal(t, 1, snap.Fleet.Scan.Malformed)

	e2, ok := st.Engine(2)
	require.True(t, ok)
	assert.Equal(t, health.StatusBroken, e2.Status)
	assert.InDelta(t, -25.0, e2.Delta, 1e-9)

	active := al.Active()
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].EngineID)

	pts, err := hist.Engine(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, pts, 1)

	assert.Equal(t, 1, pub.count())
	assert.Contains(t, console.String(), "Broken")
}

func TestPoll_DeltaModePoll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.log")
	writeLog(t, path, `{"unit":1,"cycle":1,"rul":130}`, `{"unit":1,"cycle":2,"rul":120}`)

	s := settings(path)
	s.DeltaMode = config.DeltaModePoll
	p, err := New(Deps{Store: store.New()}, s)
	require.NoError(t, err)

	first := p.Poll(context.Background())
	assert.Zero(t, first.Fleet.Engines[0].Delta, "first sighting has no previous poll")

	writeLog(t, path, `{"unit":1,"cycle":1,"rul":130}`, `{"unit":1,"cycle":2,"rul":120}`, `{"unit":1,"cycle":3,"rul":112}`)
	second := p.Poll(context.Background())
	assert.InDelta(t, -8.0, second.Fleet.Engines[0].Delta, 1e-9)

	// Unchanged log: no movement since last poll.
	third := p.Poll(context.Background())
	assert.Zero(t, third.Fleet.Engines[0].Delta)
}

func TestPoll_TruncatedLogResetsTracker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.log")
	writeLog(t, path, `{"unit":1,"rul":130}`, `{"unit":1,"rul":120}`, `{"unit":1,"rul":110}`)

	s := settings(path)
	s.DeltaMode = config.DeltaModePoll
	p, err := New(Deps{Store: store.New()}, s)
	require.NoError(t, err)
	p.Poll(context.Background())

	writeLog(t, path, `{"unit":1,"rul":150}`)
	snap := p.Poll(context.Background())
	assert.Zero(t, snap.Fleet.Engines[0].Delta, "new run starts without a delta")
}

func TestPoll_RewrittenLogWithMoreRecordsResetsTracker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.log")
	writeLog(t, path, `{"unit":1,"cycle":1,"rul":130}`, `{"unit":1,"cycle":2,"rul":120}`)

	s := settings(path)
	s.DeltaMode = config.DeltaModePoll
	p, err := New(Deps{Store: store.New()}, s)
	require.NoError(t, err)
	p.Poll(context.Background())

	// A new run outgrew the old log between polls.
	writeLog(t, path, `{"unit":1,"cycle":1,"rul":140}`, `{"unit":1,"cycle":2,"rul":135}`, `{"unit":1,"cycle":3,"rul":131}`)
	snap := p.Poll(context.Background())
	assert.Zero(t, snap.Fleet.Engines[0].Delta, "new run starts without a delta")

	writeLog(t, path, `{"unit":1,"cycle":1,"rul":140}`, `{"unit":1,"cycle":2,"rul":135}`, `{"unit":1,"cycle":3,"rul":131}`, `{"unit":1,"cycle":4,"rul":128}`)
	snap = p.Poll(context.Background())
	assert.InDelta(t, -3.0, snap.Fleet.Engines[0].Delta, 1e-9, "appends to the same run keep their delta")
}

func TestUpdate_LogPathChangeForgetsPreviousLog(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	writeLog(t, first, `{"unit":1,"rul":130}`, `{"unit":1,"rul":120}`, `{"unit":1,"rul":110}`)

	p, err := New(Deps{Store: store.New()}, settings(first))
	require.NoError(t, err)
	p.Poll(context.Background())

	require.NoError(t, p.Update(settings(filepath.Join(dir, "b.log"))))
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Zero(t, p.prevRecords)
	assert.Nil(t, p.prevHead)
}

func TestUpdate_ThresholdsApplyOnNextPoll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.log")
	writeLog(t, path, `{"unit":1,"rul":90}`)

	p, err := New(Deps{Store: store.New()}, settings(path))
	require.NoError(t, err)
	assert.Equal(t, health.StatusMinor, p.Poll(context.Background()).Fleet.Engines[0].Status)

	s := settings(path)
	s.Thresholds = health.Thresholds{Healthy: 80, Minor: 50, Major: 20}
	require.NoError(t, p.Update(s))
	assert.Equal(t, health.StatusHealthy, p.Poll(context.Background()).Fleet.Engines[0].Status)

	s.Interval = -1
	assert.Error(t, p.Update(s))
	assert.Equal(t, 10*time.Millisecond, p.current().Interval, "invalid update keeps old settings")
}

// --- Run --------------------------------------------------------------------

func TestRun_PollsUntilCancelled(t *testing.T) {
	pub := &capture{}
	p, err := New(Deps{Store: store.New(), Hub: pub}, settings(filepath.Join(t.TempDir(), "none.log")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return pub.count() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s := p.current()
	s.Interval = time.Hour
	require.NoError(t, p.Update(s))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
