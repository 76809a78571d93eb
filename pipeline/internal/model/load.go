package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rulstream/rulstream/pipeline/internal/retry"
)

// Artifacts names the two objects the training step persists.
type Artifacts struct {
	Model  string
	Scaler string
}

// Load reads and decodes both artifacts from store into a fresh Predictor.
// Missing artifacts fail immediately with *ArtifactMissingError; other read
// errors are retried according to policy.
func Load(ctx context.Context, store Store, names Artifacts, policy retry.Policy) (*Predictor, error) {
	scalerRaw, err := fetch(ctx, store, names.Scaler, policy)
	if err != nil {
		return nil, err
	}
	modelRaw, err := fetch(ctx, store, names.Model, policy)
	if err != nil {
		return nil, err
	}

	var sa scalerArtifact
	if err := yaml.Unmarshal(scalerRaw, &sa); err != nil {
		return nil, fmt.Errorf("model: decode scaler %q: %w", names.Scaler, err)
	}
	scaler, err := sa.build()
	if err != nil {
		return nil, err
	}

	var ma modelArtifact
	if err := yaml.Unmarshal(modelRaw, &ma); err != nil {
		return nil, fmt.Errorf("model: decode model %q: %w", names.Model, err)
	}
	m, err := ma.build()
	if err != nil {
		return nil, err
	}

	return NewPredictor(scaler, m)
}

func fetch(ctx context.Context, store Store, name string, policy retry.Policy) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, policy, func() error {
		rc, err := store.Open(ctx, name)
		if err != nil {
			if isMissing(err) {
				return retry.Permanent(&ArtifactMissingError{Name: name, Location: store.String()})
			}
			return err
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, rc); err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		data = buf.Bytes()
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		slog.Warn("model: artifact read failed, retrying",
			"artifact", name, "location", store.String(), "attempt", attempt, "retry_in", wait, "err", err)
	})
	if err != nil {
		if _, ok := err.(*ArtifactMissingError); ok {
			return nil, err
		}
		return nil, fmt.Errorf("model: load %q: %w", name, err)
	}
	return data, nil
}
