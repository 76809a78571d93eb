package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rulstream/rulstream/monitor/internal/health"
)

const schema = `
CREATE TABLE IF NOT EXISTS engine_history (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	polled_at INTEGER NOT NULL,
	engine_id INTEGER NOT NULL,
	cycle     INTEGER NOT NULL,
	rul       REAL    NOT NULL,
	delta_rul REAL    NOT NULL,
	status    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS engine_history_engine ON engine_history (engine_id, polled_at);
CREATE INDEX IF NOT EXISTS engine_history_polled ON engine_history (polled_at);
`

// Point is one historical observation of an engine.
type Point struct {
	PolledAt time.Time     `json:"polled_at"`
	Cycle    int           `json:"cycle"`
	RUL      float64       `json:"rul"`
	Delta    float64       `json:"delta_rul"`
	Status   health.Status `json:"status"`
}

// History persists engine observations to a SQLite database. Only engines
// whose cycle or RUL changed since the previous Record are written.
type History struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time

	mu   sync.Mutex
	last map[int]health.EngineHealth
}

// OpenHistory opens (creating if needed) the database at path.
func OpenHistory(path string, retention time.Duration) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One writer; avoids SQLITE_BUSY between Record and Prune.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &History{
		db:        db,
		retention: retention,
		now:       time.Now,
		last:      make(map[int]health.EngineHealth),
	}, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record writes the engines of f that changed since the last call and
// returns how many rows were inserted.
func (h *History) Record(ctx context.Context, f *health.Fleet) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO engine_history (polled_at, engine_id, cycle, rul, delta_rul, status)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	at := f.ScannedAt.UnixNano()
	var written []health.EngineHealth
	for _, e := range f.Engines {
		if prev, ok := h.last[e.Unit]; ok && prev.Cycle == e.Cycle && prev.RUL == e.RUL && prev.Records == e.Records {
			continue
		}
		if _, err := stmt.ExecContext(ctx, at, e.Unit, e.Cycle, e.RUL, e.Delta, string(e.Status)); err != nil {
			return 0, fmt.Errorf("store: insert engine %d: %w", e.Unit, err)
		}
		written = append(written, e)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	for _, e := range written {
		h.last[e.Unit] = e
	}
	return len(written), nil
}

// Forget clears the change-detection state so the next Record writes every
// engine, e.g. after the prediction log was truncated.
func (h *History) Forget() {
	h.mu.Lock()
	h.last = make(map[int]health.EngineHealth)
	h.mu.Unlock()
}

// Engine returns up to limit of the most recent points for unit, oldest first.
func (h *History) Engine(ctx context.Context, unit, limit int) ([]Point, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT polled_at, cycle, rul, delta_rul, status
		FROM engine_history
		WHERE engine_id = ?
		ORDER BY polled_at DESC, id DESC
		LIMIT ?`, unit, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query engine %d: %w", unit, err)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var (
			p      Point
			at     int64
			status string
		)
		if err := rows.Scan(&at, &p.Cycle, &p.RUL, &p.Delta, &status); err != nil {
			return nil, fmt.Errorf("store: scan engine %d: %w", unit, err)
		}
		p.PolledAt = time.Unix(0, at).UTC()
		p.Status = health.Status(status)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows engine %d: %w", unit, err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Prune deletes points polled before cutoff and returns how many were removed.
func (h *History) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM engine_history WHERE polled_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}

// Run prunes points older than the retention every interval until ctx is
// cancelled. A zero retention keeps everything.
func (h *History) Run(ctx context.Context, interval time.Duration) {
	if h.retention <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := h.Prune(ctx, h.now().Add(-h.retention))
			if err != nil {
				slog.Warn("store: history prune failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("store: pruned history", "rows", n)
			}
		}
	}
}
