package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rulstream/rulstream/monitor/internal/health"
	"github.com/rulstream/rulstream/monitor/internal/scraper"
	"github.com/rulstream/rulstream/monitor/internal/store"
)

func TestSnapshot_Table(t *testing.T) {
	f, err := health.Rescan(strings.NewReader(
		`{"unit":10,"cycle":5,"rul":15}`+"\n"+
			`{"unit":2,"cycle":1,"rul":120}`+"\n"+
			`{"unit":2,"cycle":2,"rul":90}`+"\n",
	), health.DefaultThresholds, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Snapshot(&buf, &store.Snapshot{Fleet: f}, Options{}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(buf.String(), "\n")
	if !strings.HasPrefix(lines[0], "Engine │ Cycle │") || !strings.HasSuffix(lines[0], "Status") {
		t.Errorf("header = %q", lines[0])
	}
	if want := "     2 │     2 │   90.00 │ -30.00 │ Minor"; lines[2] != want {
		t.Errorf("row 1 = %q, want %q", lines[2], want)
	}
	if !strings.HasPrefix(lines[3], "    10 │") || !strings.HasSuffix(lines[3], "Broken") {
		t.Errorf("row 2 = %q", lines[3])
	}
	if !strings.Contains(buf.String(), "2 engines: 0 healthy, 1 minor, 0 major, 1 broken") {
		t.Errorf("summary missing:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), clearScreen) {
		t.Error("cleared without ClearScreen")
	}
}

func TestSnapshot_NoData(t *testing.T) {
	var buf bytes.Buffer
	_ = Snapshot(&buf, &store.Snapshot{NoData: true}, Options{ClearScreen: true, LogPath: "model/predictions.log"})
	out := buf.String()
	if !strings.HasPrefix(out, clearScreen) {
		t.Error("screen not cleared")
	}
	if !strings.Contains(out, "no predictions yet") || !strings.Contains(out, "model/predictions.log") {
		t.Errorf("out = %q", out)
	}
}

func TestSnapshot_WithoutCyclesAndPipeline(t *testing.T) {
	f, _ := health.Rescan(strings.NewReader(`{"unit":1,"rul":150}`+"\n"), health.DefaultThresholds, time.Now())
	var buf bytes.Buffer
	_ = Snapshot(&buf, &store.Snapshot{
		Fleet:    f,
		Pipeline: &scraper.PipelineStats{RecordsEnqueued: 10, Predictions: 9, ActiveWorkers: 3},
	}, Options{})
	out := buf.String()
	if !strings.Contains(out, "     1 │     - │") {
		t.Errorf("missing cycle placeholder:\n%s", out)
	}
	if !strings.Contains(out, "pipeline: 10 enqueued, 9 predicted") {
		t.Errorf("missing pipeline footer:\n%s", out)
	}
}
