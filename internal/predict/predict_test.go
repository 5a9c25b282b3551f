package predict

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadLinearModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"weights":[0.5,-0.25,1.0],"intercept":0.1}`), 0644))

	m, err := LoadLinearModel(path, testLogger())
	require.NoError(t, err)

	score, err := m.Predict([]float64{2.0, 4.0, 1.0})
	require.NoError(t, err)
	assert.InDelta(t, 0.1+1.0-1.0+1.0, score, 1e-9)

	_, err = m.Predict([]float64{1.0})
	assert.Error(t, err)
}

func TestLoadLinearModelRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadLinearModel(filepath.Join(dir, "missing.json"), testLogger())
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{weights"), 0644))
	_, err = LoadLinearModel(bad, testLogger())
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"weights":[],"intercept":0}`), 0644))
	_, err = LoadLinearModel(empty, testLogger())
	assert.Error(t, err)
}

func TestSmootherWarmupAndConvergence(t *testing.T) {
	s := NewSmoother(5)

	var ready bool
	var got float64
	for i := 0; i < 4; i++ {
		got, ready = s.Update(1.0)
		assert.False(t, ready, "not ready before a full window")
	}
	got, ready = s.Update(1.0)
	assert.True(t, ready)
	assert.InDelta(t, 1.0, got, 1e-9)

	// Feeding a constant keeps the average at that constant.
	for i := 0; i < 50; i++ {
		got, _ = s.Update(-2.0)
	}
	assert.InDelta(t, -2.0, got, 1e-3)
}

func TestSmootherWeightsRecentValues(t *testing.T) {
	s := NewSmoother(3)
	for i := 0; i < 10; i++ {
		s.Update(0.0)
	}
	got, _ := s.Update(3.0)
	assert.Greater(t, got, 0.5)
	assert.Less(t, got, 3.0)
	assert.False(t, math.IsNaN(got))
}
