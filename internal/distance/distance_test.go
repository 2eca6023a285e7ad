package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	t.Run("pinhole relation", func(t *testing.T) {
		t.Parallel()
		d, err := cfg.Estimate(100)
		require.NoError(t, err)
		assert.InDelta(t, 14.0, d, 1e-9) // 2.0 * 700 / 100
	})

	t.Run("halves when width doubles", func(t *testing.T) {
		t.Parallel()
		for _, w := range []float64{10, 35, 140, 333.3} {
			d1, err := cfg.Estimate(w)
			require.NoError(t, err)
			d2, err := cfg.Estimate(2 * w)
			require.NoError(t, err)
			assert.InDelta(t, d1/2, d2, 1e-9, "width %v", w)
		}
	})

	t.Run("degenerate widths are indeterminate", func(t *testing.T) {
		t.Parallel()
		for _, w := range []float64{0, -1, -100, 1e-9, math.NaN(), math.Inf(1)} {
			_, err := cfg.Estimate(w)
			assert.ErrorIs(t, err, ErrIndeterminate, "width %v", w)
		}
	})

	t.Run("width just above epsilon is finite", func(t *testing.T) {
		t.Parallel()
		d, err := Estimate(1e-3, 2.0, 700, 1e-6)
		require.NoError(t, err)
		assert.False(t, math.IsInf(d, 0))
		assert.Greater(t, d, 0.0)
	})

	t.Run("custom epsilon", func(t *testing.T) {
		t.Parallel()
		_, err := Estimate(2, 2.0, 700, 2)
		assert.ErrorIs(t, err, ErrIndeterminate)
		_, err = Estimate(2.5, 2.0, 700, 2)
		assert.NoError(t, err)
	})
}
