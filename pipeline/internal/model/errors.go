package model

import (
	"fmt"
	"strings"
)

// ArtifactMissingError reports that the model or scaler has not been produced.
type ArtifactMissingError struct {
	Name     string
	Location string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("model: artifact %q not found in %s: run training first", e.Name, e.Location)
}

// FeatureShapeError reports a feature vector that does not match the names
// and order the scaler was fitted with.
type FeatureShapeError struct {
	Want []string
	Got  []string
	// Position is the first mismatching index, or -1 for a length mismatch.
	Position int
}

func (e *FeatureShapeError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("model: feature shape: got %d features, want %d", len(e.Got), len(e.Want))
	}
	return fmt.Sprintf("model: feature shape: position %d is %q, want %q (expected order: %s)",
		e.Position, e.Got[e.Position], e.Want[e.Position], strings.Join(e.Want, ","))
}
