package vecmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	// |v| == 1 с точностью 1e-3 — инвариант персистентности
	assert.InDelta(t, 1.0, Norm(v), 1e-3)
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestNorm(t *testing.T) {
	assert.InDelta(t, 5.0, Norm([]float32{3, 4}), 1e-9)
	assert.Equal(t, 0.0, Norm(nil))
}

func TestMean(t *testing.T) {
	m := Mean([][]float32{{1, 2}, {3, 4}, {5, 6}})
	require.Equal(t, []float32{3, 4}, m)

	assert.Nil(t, Mean(nil))
}

func TestMeanThenNormalize(t *testing.T) {
	// усреднённый вектор после нормализации снова единичный
	m := Normalize(Mean([][]float32{{1, 0}, {0, 1}}))
	assert.InDelta(t, 1.0, Norm(m), 1e-6)
	assert.InDelta(t, m[0], m[1], 1e-6)
	assert.False(t, math.IsNaN(float64(m[0])))
}
