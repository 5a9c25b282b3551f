package predict

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Predictor scores a feature vector into a directional signal. Negative
// scores lean toward selling, positive toward buying.
type Predictor interface {
	Predict(features []float64) (float64, error)
}

// LinearModel is a trained linear scorer loaded from a JSON export.
type LinearModel struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// LoadLinearModel reads a model file. An unreadable or malformed model is a
// startup error; trading on a default model would be worse than not starting.
func LoadLinearModel(path string, logger *slog.Logger) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("model file %s has no weights", path)
	}

	logger.Info("[PREDICT] Model loaded", "path", path, "features", len(m.Weights))
	return &m, nil
}

func (m *LinearModel) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("model expects %d features, got %d", len(m.Weights), len(features))
	}
	score := m.Intercept
	for i, w := range m.Weights {
		score += w * features[i]
	}
	return score, nil
}

// Smoother is an exponentially weighted moving average over successive
// predictions with alpha = 1/window. It reports not-ready until a full
// window of observations has been seen, matching the warm-up rule of the
// training pipeline.
type Smoother struct {
	alpha  float64
	window int
	count  int
	num    float64
	den    float64
}

// NewSmoother creates a smoother with the given window length.
func NewSmoother(window int) *Smoother {
	if window < 1 {
		window = 1
	}
	return &Smoother{alpha: 1.0 / float64(window), window: window}
}

// Update folds a new prediction into the average and returns the smoothed
// value along with whether the warm-up window has been satisfied.
func (s *Smoother) Update(value float64) (float64, bool) {
	decay := 1.0 - s.alpha
	s.num = value + decay*s.num
	s.den = 1.0 + decay*s.den
	s.count++
	return s.num / s.den, s.count >= s.window
}

// Ready reports whether a full window of observations has been seen.
func (s *Smoother) Ready() bool {
	return s.count >= s.window
}
