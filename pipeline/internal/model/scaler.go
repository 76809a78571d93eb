package model

import "fmt"

// Scaler is a fitted min-max scaler: x' = x*scale + min, per feature.
type Scaler struct {
	names []string
	scale []float64
	min   []float64
}

type scalerArtifact struct {
	Kind         string    `yaml:"kind"`
	FeatureNames []string  `yaml:"feature_names"`
	DataMin      []float64 `yaml:"data_min"`
	DataMax      []float64 `yaml:"data_max"`
	FeatureRange []float64 `yaml:"feature_range"`
}

// NewMinMaxScaler builds a scaler from the fitted per-feature data range.
// Constant features (max == min) get scale 1, as the fitting library does.
func NewMinMaxScaler(names []string, dataMin, dataMax []float64, lo, hi float64) (*Scaler, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("model: scaler has no features")
	}
	if len(dataMin) != len(names) || len(dataMax) != len(names) {
		return nil, fmt.Errorf("model: scaler: %d names, %d mins, %d maxes", len(names), len(dataMin), len(dataMax))
	}
	if hi <= lo {
		return nil, fmt.Errorf("model: scaler: feature range [%v, %v] is empty", lo, hi)
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("model: scaler: duplicate feature %q", n)
		}
		seen[n] = struct{}{}
	}

	s := &Scaler{
		names: append([]string(nil), names...),
		scale: make([]float64, len(names)),
		min:   make([]float64, len(names)),
	}
	for i := range names {
		span := dataMax[i] - dataMin[i]
		if span == 0 {
			span = 1
		}
		s.scale[i] = (hi - lo) / span
		s.min[i] = lo - dataMin[i]*s.scale[i]
	}
	return s, nil
}

func (a scalerArtifact) build() (*Scaler, error) {
	if a.Kind != "" && a.Kind != "minmax" {
		return nil, fmt.Errorf("model: scaler kind %q unsupported", a.Kind)
	}
	lo, hi := 0.0, 1.0
	if len(a.FeatureRange) != 0 {
		if len(a.FeatureRange) != 2 {
			return nil, fmt.Errorf("model: scaler feature_range needs 2 values, got %d", len(a.FeatureRange))
		}
		lo, hi = a.FeatureRange[0], a.FeatureRange[1]
	}
	return NewMinMaxScaler(a.FeatureNames, a.DataMin, a.DataMax, lo, hi)
}

// FeatureNames returns the fitted feature order.
func (s *Scaler) FeatureNames() []string {
	return append([]string(nil), s.names...)
}

// Transform scales x into dst. Both must have len(FeatureNames()) entries.
func (s *Scaler) Transform(dst, x []float64) {
	for i, v := range x {
		dst[i] = v*s.scale[i] + s.min[i]
	}
}
