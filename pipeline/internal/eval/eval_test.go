package eval

import (
	"math"
	"testing"

	"github.com/rulstream/rulstream/pkg/types"
)

func TestEvaluate(t *testing.T) {
	latest := []types.PredictionRecord{
		{Unit: 1, Cycle: 31, RUL: 110},
		{Unit: 2, Cycle: 49, RUL: 100},
	}
	// unit 2's true RUL is capped to 165 before comparison
	truth := map[int]float64{1: 112, 2: 200, 3: 50}

	r, err := Evaluate(latest, truth, 165)
	if err != nil {
		t.Fatal(err)
	}
	if r.Engines != 2 {
		t.Errorf("Engines = %d, want 2", r.Engines)
	}
	if r.MAE != (2+65)/2.0 {
		t.Errorf("MAE = %v", r.MAE)
	}
	if want := math.Sqrt((4 + 65*65) / 2.0); math.Abs(r.RMSE-want) > 1e-9 {
		t.Errorf("RMSE = %v, want %v", r.RMSE, want)
	}
	if len(r.Missing) != 1 || r.Missing[0] != 3 {
		t.Errorf("Missing = %v, want [3]", r.Missing)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	if _, err := Evaluate(nil, map[int]float64{1: 1}, 165); err == nil {
		t.Error("no overlap: expected error")
	}
	if _, err := Evaluate(nil, nil, 0); err == nil {
		t.Error("zero cap: expected error")
	}
}
