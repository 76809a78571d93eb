package api

import (
	"fmt"
	"sort"

	"github.com/rulstream/rulstream/monitor/internal/health"
)

// fastDrop is the per-update RUL loss that counts as rapid degradation.
const fastDrop = 10.0

// DiagnosticHint is one short insight about an engine, shown as a chip next
// to its row.
type DiagnosticHint struct {
	Key    string   `json:"key"`
	Level  string   `json:"level"` // ok | info | warning | critical
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints for e, most severe first.
func computeDiagnostics(e health.EngineHealth) []DiagnosticHint {
	var hints []DiagnosticHint
	rul := e.RUL

	switch {
	case rul <= 0:
		hints = append(hints, DiagnosticHint{
			Key:    "past_life",
			Level:  "critical",
			Title:  "Past predicted life",
			Detail: fmt.Sprintf("The model predicts no remaining cycles (RUL %.1f). Ground the engine for inspection.", rul),
			Value:  &rul,
		})
	case e.Status == health.StatusBroken:
		hints = append(hints, DiagnosticHint{
			Key:    "maintenance_due",
			Level:  "critical",
			Title:  "Maintenance due",
			Detail: fmt.Sprintf("Only %.1f cycles of useful life remain. Schedule maintenance before the next flights.", rul),
			Value:  &rul,
		})
	case e.Status == health.StatusMajor:
		hints = append(hints, DiagnosticHint{
			Key:    "plan_maintenance",
			Level:  "warning",
			Title:  "Plan maintenance",
			Detail: fmt.Sprintf("About %.0f cycles remain. Book a maintenance slot.", rul),
			Value:  &rul,
		})
	}

	if d := e.Delta; d <= -fastDrop {
		hints = append(hints, DiagnosticHint{
			Key:    "fast_degradation",
			Level:  "warning",
			Title:  "Degrading fast",
			Detail: fmt.Sprintf("RUL fell by %.1f since the previous reading, well above the usual one cycle per cycle.", -d),
			Value:  &d,
		})
	} else if d > 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "rul_increased",
			Level:  "info",
			Title:  "RUL went up",
			Detail: fmt.Sprintf("The latest prediction is %.1f higher than the previous one. Small increases are model noise.", d),
			Value:  &d,
		})
	}

	if e.Records == 1 {
		hints = append(hints, DiagnosticHint{
			Key:    "single_reading",
			Level:  "info",
			Title:  "First reading",
			Detail: "Only one prediction has been logged for this engine, so there is no trend yet.",
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "nominal",
			Level:  "ok",
			Title:  "Nominal",
			Detail: "Remaining life and its trend look normal.",
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}
