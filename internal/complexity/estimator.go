package complexity

import (
	"math"

	sitter "github.com/smacker/go-tree-sitter"
)

// Estimate is a predicted complexity score in [0, 1] with an optional
// prediction interval.
type Estimate struct {
	Score       float64
	Lower       float64
	Upper       float64
	HasInterval bool
}

// Confidence maps the interval width to [0, 1]. ok is false without an
// interval.
func (e Estimate) Confidence() (conf float64, ok bool) {
	if !e.HasInterval {
		return 0, false
	}
	return clamp01(1.0 - (e.Upper - e.Lower)), true
}

// Estimator scores functions with a Model, falling back to a fixed
// heuristic when no model is loaded.
type Estimator struct {
	model *Model
}

// NewEstimator returns an Estimator. m may be nil.
func NewEstimator(m *Model) *Estimator {
	return &Estimator{model: m}
}

// Available reports whether a trained model is loaded.
func (e *Estimator) Available() bool {
	return e.model != nil
}

// Estimate scores a function_definition node. Intervals are only
// produced when withConfidence is set and the model supports them.
func (e *Estimator) Estimate(fn *sitter.Node, source []byte, filePath string, withConfidence bool) Estimate {
	f := Extract(fn, source, filePath)

	if e.model == nil {
		return Estimate{Score: Heuristic(f)}
	}
	if !withConfidence {
		return Estimate{Score: e.model.Predict(f)}
	}
	score, lo, hi, ok := e.model.PredictInterval(f)
	return Estimate{Score: score, Lower: lo, Upper: hi, HasInterval: ok}
}

// Heuristic scores features without a model. Each term saturates so
// the result stays in [0, 1].
func Heuristic(f Features) float64 {
	score := 0.4*saturate(f[CyclomaticComplexity]-1, 10) +
		0.3*saturate(f[LinesOfCode], 60) +
		0.15*saturate(f[NumLoops]+f[NumExceptions], 4) +
		0.15*saturate(f[NumParameters], 6)
	return clamp01(score)
}

func saturate(v, limit float64) float64 {
	return math.Min(math.Max(v, 0)/limit, 1)
}

// BaselineModel returns a linear model that approximates Heuristic for
// typical function sizes. It is the starting point written by
// "coverimpact init --model".
func BaselineModel() *Model {
	return &Model{
		Intercept: -0.04,
		Weights: map[string]float64{
			CyclomaticComplexity: 0.04,
			LinesOfCode:          0.005,
			NumLoops:             0.0375,
			NumExceptions:        0.0375,
			NumParameters:        0.025,
		},
		Interval: 0.15,
	}
}
