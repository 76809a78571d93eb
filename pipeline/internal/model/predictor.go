package model

import (
	"fmt"

	"github.com/rulstream/rulstream/pkg/types"
)

// Predictor is a scaler and model pair loaded for one worker.
type Predictor struct {
	scaler *Scaler
	model  Model
	buf    []float64
}

// NewPredictor pairs s and m. Their feature counts must agree.
func NewPredictor(s *Scaler, m Model) (*Predictor, error) {
	if n := len(s.names); n != m.NumFeatures() {
		return nil, fmt.Errorf("model: scaler has %d features, model expects %d", n, m.NumFeatures())
	}
	return &Predictor{scaler: s, model: m, buf: make([]float64, len(s.names))}, nil
}

// FeatureNames returns the feature order records must follow.
func (p *Predictor) FeatureNames() []string { return p.scaler.FeatureNames() }

// Predict returns the RUL estimate for features, which must carry exactly
// the scaler's feature names in the scaler's order.
func (p *Predictor) Predict(features []types.Feature) (float64, error) {
	if err := p.checkShape(features); err != nil {
		return 0, err
	}
	raw := make([]float64, len(features))
	for i, f := range features {
		raw[i] = f.Value
	}
	p.scaler.Transform(p.buf, raw)
	return p.model.Predict(p.buf)
}

func (p *Predictor) checkShape(features []types.Feature) error {
	want := p.scaler.names
	if len(features) != len(want) {
		return CheckShape(p.FeatureNames(), types.SensorRecord{Features: features}.Names())
	}
	for i, f := range features {
		if f.Name != want[i] {
			return CheckShape(p.FeatureNames(), types.SensorRecord{Features: features}.Names())
		}
	}
	return nil
}

// CheckShape compares a feature name list against the order the scaler was
// fitted with and returns a *FeatureShapeError on the first difference.
func CheckShape(want, got []string) error {
	if len(got) != len(want) {
		return &FeatureShapeError{Want: want, Got: got, Position: -1}
	}
	for i := range got {
		if got[i] != want[i] {
			return &FeatureShapeError{Want: want, Got: got, Position: i}
		}
	}
	return nil
}
