package types

// Feature is one named numeric value in a record's feature vector.
type Feature struct {
	Name  string
	Value float64
}

// SensorRecord is one engine's telemetry for one cycle. Features are ordered;
// the order must match the order the scaler was fitted with.
type SensorRecord struct {
	Unit     int
	Cycle    int
	Features []Feature
}

// Names returns the feature names in record order.
func (r SensorRecord) Names() []string {
	out := make([]string, len(r.Features))
	for i, f := range r.Features {
		out[i] = f.Name
	}
	return out
}

// PredictionRecord is one line of the prediction log.
type PredictionRecord struct {
	Unit  int     `json:"unit"`
	Cycle int     `json:"cycle,omitempty"` // 0 when the log variant omits cycles
	RUL   float64 `json:"rul"`
}
