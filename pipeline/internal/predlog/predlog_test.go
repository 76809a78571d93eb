package predlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rulstream/rulstream/pipeline/internal/retry"
	"github.com/rulstream/rulstream/pkg/types"
)

func readLines(t *testing.T, path string) []types.PredictionRecord {
	t.Helper()
	var out []types.PredictionRecord
	stats, err := types.ReadLogFile(path, func(r types.PredictionRecord) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Malformed != 0 {
		t.Fatalf("%d malformed lines", stats.Malformed)
	}
	return out
}

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model", "predictions.log")
	w, err := Open(path, Options{Truncate: true})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx := context.Background()
	if err := w.Append(ctx, types.PredictionRecord{Unit: 1, Cycle: 1, RUL: 150.5}); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(ctx, types.PredictionRecord{Unit: 2, Cycle: 1, RUL: 90}); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	want := `{"unit":1,"cycle":1,"rul":150.5}` + "\n" + `{"unit":2,"cycle":1,"rul":90}` + "\n"
	if string(raw) != want {
		t.Errorf("log =\n%s\nwant\n%s", raw, want)
	}
}

func TestOpen_Truncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.log")
	if err := os.WriteFile(path, []byte(`{"unit":9,"cycle":9,"rul":1}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_ = w.Append(context.Background(), types.PredictionRecord{Unit: 1, Cycle: 1, RUL: 1})
	w.Close()
	if got := len(readLines(t, path)); got != 2 {
		t.Errorf("without truncate: %d lines, want 2", got)
	}

	w, err = Open(path, Options{Truncate: true})
	if err != nil {
		t.Fatal(err)
	}
	w.Close()
	if got := len(readLines(t, path)); got != 0 {
		t.Errorf("after truncate: %d lines, want 0", got)
	}
}

func TestAppend_OmitCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.log")
	w, err := Open(path, Options{OmitCycle: true})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	_ = w.Append(context.Background(), types.PredictionRecord{Unit: 3, Cycle: 40, RUL: 12})
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "cycle") {
		t.Errorf("line has cycle: %s", raw)
	}
}

func TestAppend_ConcurrentLinesStayWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.log")
	w, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	const workers, each = 4, 200
	var wg sync.WaitGroup
	for u := 1; u <= workers; u++ {
		wg.Add(1)
		go func(unit int) {
			defer wg.Done()
			for c := 1; c <= each; c++ {
				if err := w.Append(context.Background(), types.PredictionRecord{Unit: unit, Cycle: c, RUL: float64(c)}); err != nil {
					t.Error(err)
					return
				}
			}
		}(u)
	}
	wg.Wait()

	recs := readLines(t, path)
	if len(recs) != workers*each {
		t.Fatalf("%d lines, want %d", len(recs), workers*each)
	}
	last := map[int]int{}
	for _, r := range recs {
		if r.Cycle <= last[r.Unit] {
			t.Fatalf("unit %d: cycle %d after %d", r.Unit, r.Cycle, last[r.Unit])
		}
		last[r.Unit] = r.Cycle
	}
}

func TestAppend_AfterClose(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "p.log"), Options{Retry: retry.Once})
	if err != nil {
		t.Fatal(err)
	}
	w.Close()
	err = w.Append(context.Background(), types.PredictionRecord{Unit: 1, Cycle: 1, RUL: 1})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
