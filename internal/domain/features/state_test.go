package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_EvictsOldestFirst(t *testing.T) {
	t.Parallel()

	r := newRing(3)
	_, ok := r.mean()
	assert.False(t, ok)

	for _, v := range []float64{1, 2, 3, 4, 5} {
		r.push(v)
		assert.LessOrEqual(t, r.len(), 3)
	}
	assert.Equal(t, []float64{3, 4, 5}, r.items())
	assert.InDelta(t, 12.0, r.total(), 1e-9)

	mean, ok := r.mean()
	require.True(t, ok)
	assert.InDelta(t, 4.0, mean, 1e-9)
}

func TestRing_ZeroCapacityIgnoresPushes(t *testing.T) {
	t.Parallel()

	r := newRing(0)
	r.push(1)
	assert.Zero(t, r.len())
	assert.Empty(t, r.items())
}

func TestRollingState_Conservation(t *testing.T) {
	t.Parallel()

	scores := [][2]int{{2, 1}, {0, 0}, {1, 3}, {4, 4}, {0, 2}, {5, 0}, {1, 1}}
	for _, window := range []int{1, 3, 5} {
		home := NewRollingState(window)
		away := NewRollingState(window)
		for _, s := range scores {
			home.Push(s[0], s[1])
			away.Push(s[1], s[0])

			hScored, hConceded, hOutcomes := home.History()
			aScored, aConceded, aOutcomes := away.History()
			require.Equal(t, hScored, aConceded)
			require.Equal(t, hConceded, aScored)
			require.LessOrEqual(t, len(hScored), window)
			require.Len(t, hOutcomes, len(hScored))

			last := len(hOutcomes) - 1
			pair := [2]float64{hOutcomes[last], aOutcomes[last]}
			assert.Contains(t, [][2]float64{{1, -1}, {-1, 1}, {0, 0}}, pair)
		}
	}
}

func TestRollingState_StatsFallback(t *testing.T) {
	t.Parallel()

	fb := Fallback{Scored: 1.4, Conceded: 1.2, Form: 0}
	st := NewRollingState(5)
	got := st.Stats(fb)
	assert.InDelta(t, 1.4, got.AvgScored, 1e-9)
	assert.InDelta(t, 1.2, got.AvgConceded, 1e-9)

	st.Push(3, 1)
	got = st.Stats(fb)
	assert.InDelta(t, 3.0, got.AvgScored, 1e-9)
	assert.InDelta(t, 1.0, got.AvgConceded, 1e-9)
	assert.InDelta(t, 1.0, got.Form, 1e-9)
}
