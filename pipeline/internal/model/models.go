package model

import (
	"fmt"
	"math"

	"github.com/dop251/goja"
)

// Model scores a scaled feature vector.
type Model interface {
	Predict(x []float64) (float64, error)
	NumFeatures() int
}

type modelArtifact struct {
	Kind      string  `yaml:"kind"`
	Intercept float64 `yaml:"intercept"`

	// linear
	Coef []float64 `yaml:"coef"`

	// svr
	Kernel         string      `yaml:"kernel"`
	Gamma          float64     `yaml:"gamma"`
	SupportVectors [][]float64 `yaml:"support_vectors"`
	DualCoef       []float64   `yaml:"dual_coef"`

	// script
	NFeatures int    `yaml:"n_features"`
	Source    string `yaml:"source"`
}

func (a modelArtifact) build() (Model, error) {
	switch a.Kind {
	case "linear":
		return NewLinear(a.Coef, a.Intercept)
	case "svr":
		return NewSVR(a.Kernel, a.Gamma, a.SupportVectors, a.DualCoef, a.Intercept)
	case "script":
		return NewScript(a.Source, a.NFeatures)
	default:
		return nil, fmt.Errorf("model: kind %q unsupported: want linear|svr|script", a.Kind)
	}
}

// --- linear -----------------------------------------------------------------

// Linear is y = coef·x + intercept.
type Linear struct {
	coef      []float64
	intercept float64
}

// NewLinear returns a fitted linear model.
func NewLinear(coef []float64, intercept float64) (*Linear, error) {
	if len(coef) == 0 {
		return nil, fmt.Errorf("model: linear model has no coefficients")
	}
	return &Linear{coef: append([]float64(nil), coef...), intercept: intercept}, nil
}

func (m *Linear) NumFeatures() int { return len(m.coef) }

func (m *Linear) Predict(x []float64) (float64, error) {
	y := m.intercept
	for i, c := range m.coef {
		y += c * x[i]
	}
	return y, nil
}

// --- svr --------------------------------------------------------------------

// SVR is a fitted epsilon-SVR: y = Σ dual_i·K(sv_i, x) + intercept.
type SVR struct {
	kernel    string
	gamma     float64
	sv        [][]float64
	dual      []float64
	intercept float64
}

// NewSVR returns a fitted support vector regressor with an rbf or linear kernel.
func NewSVR(kernel string, gamma float64, sv [][]float64, dual []float64, intercept float64) (*SVR, error) {
	switch kernel {
	case "rbf":
		if gamma <= 0 {
			return nil, fmt.Errorf("model: svr rbf kernel needs positive gamma")
		}
	case "linear":
	default:
		return nil, fmt.Errorf("model: svr kernel %q unsupported: want rbf|linear", kernel)
	}
	if len(sv) == 0 || len(sv) != len(dual) {
		return nil, fmt.Errorf("model: svr has %d support vectors and %d dual coefficients", len(sv), len(dual))
	}
	n := len(sv[0])
	for i, v := range sv {
		if len(v) != n || n == 0 {
			return nil, fmt.Errorf("model: svr support vector %d has %d features, want %d", i, len(v), n)
		}
	}
	return &SVR{kernel: kernel, gamma: gamma, sv: sv, dual: dual, intercept: intercept}, nil
}

func (m *SVR) NumFeatures() int { return len(m.sv[0]) }

func (m *SVR) Predict(x []float64) (float64, error) {
	y := m.intercept
	for i, v := range m.sv {
		y += m.dual[i] * m.k(v, x)
	}
	return y, nil
}

func (m *SVR) k(a, b []float64) float64 {
	if m.kernel == "linear" {
		var dot float64
		for i := range a {
			dot += a[i] * b[i]
		}
		return dot
	}
	var d2 float64
	for i := range a {
		d := a[i] - b[i]
		d2 += d * d
	}
	return math.Exp(-m.gamma * d2)
}

// --- script -----------------------------------------------------------------

// Script evaluates a JavaScript predict(x) function. It owns its runtime
// and must not be shared between goroutines.
type Script struct {
	vm        *goja.Runtime
	fn        goja.Callable
	nFeatures int
}

// NewScript compiles source, which must define predict(x).
func NewScript(source string, nFeatures int) (*Script, error) {
	if nFeatures < 1 {
		return nil, fmt.Errorf("model: script model needs n_features")
	}
	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("model: compile script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get("predict"))
	if !ok {
		return nil, fmt.Errorf("model: script does not define predict(x)")
	}
	return &Script{vm: vm, fn: fn, nFeatures: nFeatures}, nil
}

func (m *Script) NumFeatures() int { return m.nFeatures }

func (m *Script) Predict(x []float64) (float64, error) {
	arr := make([]any, len(x))
	for i, v := range x {
		arr[i] = v
	}
	res, err := m.fn(goja.Undefined(), m.vm.NewArray(arr...))
	if err != nil {
		return 0, fmt.Errorf("model: script predict: %w", err)
	}
	y := res.ToFloat()
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("model: script predict returned %v", res)
	}
	return y, nil
}
