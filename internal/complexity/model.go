package complexity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Model is a linear regressor over Features, stored as JSON:
//
//	{"version": "1.2", "intercept": 0.1, "weights": {"lines_of_code": 0.01}, "interval": 0.15}
//
// Interval is the half-width of the prediction interval; zero means the
// model gives point predictions only.
type Model struct {
	Version   string             `json:"version"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
	Interval  float64            `json:"interval,omitempty"`
}

// LoadModel reads a model file.
func LoadModel(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding model %s: %w", path, err)
	}
	if len(m.Weights) == 0 {
		return nil, errors.New("model has no weights")
	}
	if m.Interval < 0 {
		return nil, fmt.Errorf("model interval must be non-negative, got %g", m.Interval)
	}
	return &m, nil
}

// Save writes the model as indented JSON.
func (m *Model) Save(path string) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}
	return nil
}

// Predict returns the clamped score for f. Features without a weight
// are ignored.
func (m *Model) Predict(f Features) float64 {
	y := m.Intercept
	for name, w := range m.Weights {
		y += w * f[name]
	}
	return clamp01(y)
}

// PredictInterval returns the score with lower and upper bounds. ok is
// false when the model has no interval.
func (m *Model) PredictInterval(f Features) (score, lower, upper float64, ok bool) {
	score = m.Predict(f)
	if m.Interval == 0 {
		return score, 0, 0, false
	}
	return score, clamp01(score - m.Interval), clamp01(score + m.Interval), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
