package model

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rulstream/rulstream/pipeline/internal/retry"
	"github.com/rulstream/rulstream/pkg/types"
)

const scalerYAML = `
kind: minmax
feature_names: [s2, s3]
data_min: [0, 10]
data_max: [10, 10]
`

const linearYAML = `
kind: linear
coef: [10, 100]
intercept: 5
`

func feats(pairs ...any) []types.Feature {
	out := make([]types.Feature, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, types.Feature{Name: pairs[i].(string), Value: pairs[i+1].(float64)})
	}
	return out
}

func writeArtifacts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

var artifactNames = Artifacts{Model: "model.yaml", Scaler: "scaler.yaml"}

func loadDir(t *testing.T, files map[string]string) (*Predictor, error) {
	t.Helper()
	return Load(context.Background(), DirStore{Dir: writeArtifacts(t, files)}, artifactNames, retry.Once)
}

// --- scaler -----------------------------------------------------------------

func TestScaler_MinMax(t *testing.T) {
	s, err := NewMinMaxScaler([]string{"a", "b"}, []float64{0, 5}, []float64{10, 5}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]float64, 2)
	s.Transform(dst, []float64{2.5, 7})
	if math.Abs(dst[0]-0.25) > 1e-12 {
		t.Errorf("a scaled = %v, want 0.25", dst[0])
	}
	// constant column: scale 1, shifted by its min
	if dst[1] != 2 {
		t.Errorf("b scaled = %v, want 2", dst[1])
	}
}

func TestScaler_Invalid(t *testing.T) {
	cases := []struct {
		name     string
		names    []string
		min, max []float64
		lo, hi   float64
	}{
		{"empty", nil, nil, nil, 0, 1},
		{"length mismatch", []string{"a", "b"}, []float64{0}, []float64{1, 1}, 0, 1},
		{"empty range", []string{"a"}, []float64{0}, []float64{1}, 1, 1},
		{"duplicate", []string{"a", "a"}, []float64{0, 0}, []float64{1, 1}, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewMinMaxScaler(tc.names, tc.min, tc.max, tc.lo, tc.hi); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// --- models -----------------------------------------------------------------

func TestSVR_RBF(t *testing.T) {
	m, err := NewSVR("rbf", 0.5, [][]float64{{0, 0}, {1, 1}}, []float64{2, -1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	y, _ := m.Predict([]float64{0, 0})
	want := 10 + 2*1 - 1*math.Exp(-0.5*2)
	if math.Abs(y-want) > 1e-12 {
		t.Errorf("y = %v, want %v", y, want)
	}
}

func TestSVR_Invalid(t *testing.T) {
	if _, err := NewSVR("poly", 1, [][]float64{{1}}, []float64{1}, 0); err == nil {
		t.Error("poly kernel accepted")
	}
	if _, err := NewSVR("rbf", 0, [][]float64{{1}}, []float64{1}, 0); err == nil {
		t.Error("zero gamma accepted")
	}
	if _, err := NewSVR("linear", 0, [][]float64{{1}, {1, 2}}, []float64{1, 1}, 0); err == nil {
		t.Error("ragged support vectors accepted")
	}
}

func TestScript(t *testing.T) {
	m, err := NewScript(`function predict(x) { return 100 - 10 * x[0] + x.length; }`, 2)
	if err != nil {
		t.Fatal(err)
	}
	y, err := m.Predict([]float64{3, 0})
	if err != nil {
		t.Fatal(err)
	}
	if y != 72 {
		t.Errorf("y = %v, want 72", y)
	}
}

func TestScript_Errors(t *testing.T) {
	if _, err := NewScript(`var x = 1;`, 1); err == nil {
		t.Error("script without predict accepted")
	}
	if _, err := NewScript(`function predict(x) {`, 1); err == nil {
		t.Error("syntax error accepted")
	}
	m, err := NewScript(`function predict(x) { return "n/a"; }`, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Predict([]float64{1}); err == nil {
		t.Error("NaN result accepted")
	}
}

// --- predictor --------------------------------------------------------------

func TestLoad_Predict(t *testing.T) {
	p, err := loadDir(t, map[string]string{"scaler.yaml": scalerYAML, "model.yaml": linearYAML})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// s2 → 0.5, s3 constant → 12-10 = 2
	y, err := p.Predict(feats("s2", 5.0, "s3", 12.0))
	if err != nil {
		t.Fatal(err)
	}
	if y != 5+10*0.5+100*2 {
		t.Errorf("y = %v", y)
	}
	again, _ := p.Predict(feats("s2", 5.0, "s3", 12.0))
	if again != y {
		t.Errorf("not deterministic: %v then %v", y, again)
	}
}

func TestPredict_ShapeMismatch(t *testing.T) {
	p, err := loadDir(t, map[string]string{"scaler.yaml": scalerYAML, "model.yaml": linearYAML})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name     string
		in       []types.Feature
		position int
	}{
		{"reordered", feats("s3", 1.0, "s2", 1.0), 0},
		{"renamed", feats("s2", 1.0, "s4", 1.0), 1},
		{"short", feats("s2", 1.0), -1},
		{"long", feats("s2", 1.0, "s3", 1.0, "s4", 1.0), -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Predict(tc.in)
			var shape *FeatureShapeError
			if !errors.As(err, &shape) {
				t.Fatalf("err = %v, want *FeatureShapeError", err)
			}
			if shape.Position != tc.position {
				t.Errorf("position = %d, want %d", shape.Position, tc.position)
			}
		})
	}
}

func TestCheckShape(t *testing.T) {
	want := []string{"s2", "s3"}
	if err := CheckShape(want, []string{"s2", "s3"}); err != nil {
		t.Fatalf("matching names: %v", err)
	}
	var shape *FeatureShapeError
	if err := CheckShape(want, []string{"s2", "s2_roll3"}); !errors.As(err, &shape) || shape.Position != 1 {
		t.Errorf("renamed: err = %v", err)
	}
	if err := CheckShape(want, []string{"s2"}); !errors.As(err, &shape) || shape.Position != -1 {
		t.Errorf("short: err = %v", err)
	}
}

func TestLoad_MissingArtifact(t *testing.T) {
	for _, missing := range []string{"scaler.yaml", "model.yaml"} {
		t.Run(missing, func(t *testing.T) {
			files := map[string]string{"scaler.yaml": scalerYAML, "model.yaml": linearYAML}
			delete(files, missing)
			_, err := loadDir(t, files)
			var am *ArtifactMissingError
			if !errors.As(err, &am) {
				t.Fatalf("err = %v, want *ArtifactMissingError", err)
			}
			if am.Name != missing {
				t.Errorf("Name = %q, want %q", am.Name, missing)
			}
		})
	}
}

func TestLoad_FeatureCountMismatch(t *testing.T) {
	_, err := loadDir(t, map[string]string{
		"scaler.yaml": scalerYAML,
		"model.yaml":  "kind: linear\ncoef: [1, 2, 3]\n",
	})
	if err == nil {
		t.Fatal("expected error for 2-feature scaler with 3-feature model")
	}
}

func TestLoad_UnknownKind(t *testing.T) {
	_, err := loadDir(t, map[string]string{
		"scaler.yaml": scalerYAML,
		"model.yaml":  "kind: forest\n",
	})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestLoad_JSONArtifacts(t *testing.T) {
	_, err := loadDir(t, map[string]string{
		"scaler.yaml": `{"feature_names":["s2","s3"],"data_min":[0,0],"data_max":[1,1]}`,
		"model.yaml":  `{"kind":"script","n_features":2,"source":"function predict(x){return x[0]+x[1];}"}`,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
}

type flakyStore struct {
	DirStore
	failures int
}

func (f *flakyStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	return f.DirStore.Open(ctx, name)
}

func TestLoad_RetriesTransientErrors(t *testing.T) {
	dir := writeArtifacts(t, map[string]string{"scaler.yaml": scalerYAML, "model.yaml": linearYAML})
	store := &flakyStore{DirStore: DirStore{Dir: dir}, failures: 2}
	policy := retry.Policy{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}
	if _, err := Load(context.Background(), store, artifactNames, policy); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestParseS3Location(t *testing.T) {
	cases := []struct {
		in, bucket, prefix string
		ok                 bool
	}{
		{"s3://models/cmapss/fd001/", "models", "cmapss/fd001", true},
		{"s3://models", "models", "", true},
		{"s3:///x", "", "", false},
		{"/var/models", "", "", false},
	}
	for _, tc := range cases {
		b, p, err := ParseS3Location(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("%q: err = %v", tc.in, err)
			continue
		}
		if b != tc.bucket || p != tc.prefix {
			t.Errorf("%q: got (%q, %q), want (%q, %q)", tc.in, b, p, tc.bucket, tc.prefix)
		}
	}
}
