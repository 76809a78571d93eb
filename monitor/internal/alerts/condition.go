package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rulstream/rulstream/monitor/internal/health"
)

// condition is a parsed "field op value" expression.
//
// Supported fields:
//
//	rul < 30
//	delta <= -25
//	cycle > 250
//	status == broken
//	status >= major      (at least as bad as Major)
type condition struct {
	field     string
	op        string
	threshold float64
	status    health.Status
}

var severityRank = map[health.Status]int{
	health.StatusHealthy: 0,
	health.StatusMinor:   1,
	health.StatusMajor:   2,
	health.StatusBroken:  3,
}

func parseCondition(expr string) (condition, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("condition %q: want \"field op value\"", expr)
	}
	c := condition{field: parts[0], op: parts[1]}
	switch c.op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return condition{}, fmt.Errorf("condition %q: unknown operator %q", expr, c.op)
	}

	switch c.field {
	case "status":
		st, err := health.ParseStatus(parts[2])
		if err != nil {
			return condition{}, fmt.Errorf("condition %q: %w", expr, err)
		}
		c.status = st
	case "rul", "delta", "cycle":
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return condition{}, fmt.Errorf("condition %q: %q is not a number", expr, parts[2])
		}
		c.threshold = v
	default:
		return condition{}, fmt.Errorf("condition %q: unknown field %q: want rul|delta|cycle|status", expr, c.field)
	}
	return c, nil
}

// eval returns whether e matches and the value that was compared.
// For status conditions the value is the status rank (0 healthy .. 3 broken).
func (c condition) eval(e health.EngineHealth) (bool, float64) {
	switch c.field {
	case "status":
		v := float64(severityRank[e.Status])
		return compareFloat(v, c.op, float64(severityRank[c.status])), v
	case "rul":
		return compareFloat(e.RUL, c.op, c.threshold), e.RUL
	case "delta":
		return compareFloat(e.Delta, c.op, c.threshold), e.Delta
	case "cycle":
		v := float64(e.Cycle)
		return compareFloat(v, c.op, c.threshold), v
	default:
		return false, 0
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
