// Package eval scores a run's final predictions against ground truth.
package eval

import (
	"fmt"
	"math"
	"sort"

	"github.com/rulstream/rulstream/pipeline/internal/source"
	"github.com/rulstream/rulstream/pkg/types"
)

// Report holds error metrics over the engines that have both a prediction
// and a ground-truth label.
type Report struct {
	Engines int
	RMSE    float64
	MAE     float64
	// Missing lists engines with a label but no prediction, ascending.
	Missing []int
}

// Evaluate compares each engine's latest prediction with its true RUL,
// capped at ceiling as the training labels were.
func Evaluate(latest []types.PredictionRecord, truth map[int]float64, ceiling float64) (Report, error) {
	if ceiling <= 0 {
		return Report{}, fmt.Errorf("eval: cap must be positive, got %v", ceiling)
	}
	pred := make(map[int]float64, len(latest))
	for _, p := range latest {
		pred[p.Unit] = p.RUL
	}

	var r Report
	var sumSq, sumAbs float64
	for unit, y := range truth {
		yhat, ok := pred[unit]
		if !ok {
			r.Missing = append(r.Missing, unit)
			continue
		}
		d := yhat - source.Cap(y, ceiling)
		sumSq += d * d
		sumAbs += math.Abs(d)
		r.Engines++
	}
	sort.Ints(r.Missing)
	if r.Engines == 0 {
		return r, fmt.Errorf("eval: no engine has both a prediction and a label")
	}
	r.RMSE = math.Sqrt(sumSq / float64(r.Engines))
	r.MAE = sumAbs / float64(r.Engines)
	return r, nil
}
