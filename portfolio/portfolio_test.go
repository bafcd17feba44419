package portfolio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/pbanos/ptree/feature"
	"github.com/pbanos/ptree/panel"
	"github.com/pbanos/ptree/tree"
)

func TestObjectiveOfASingleSeries(t *testing.T) {
	r := Stack([]float64{0.01, 0.03})
	s, err := Objective(r, 0, 0)
	require.NoError(t, err)
	// mean 0.02, unbiased variance 0.0002
	assert.InDelta(t, 2.0, s, 1e-9)

	s, err = Objective(r, 0.0002, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-9)

	s, err = Objective(r, 0, 0.02)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, s, 1e-9)
}

func TestObjectiveNeedsTwoMonths(t *testing.T) {
	_, err := Objective(Stack([]float64{0.01}), 1e-5, 0)
	assert.Error(t, err)
}

func TestWeightsAreL1Normalized(t *testing.T) {
	r := Stack(
		[]float64{0.02, 0.01, 0.03, -0.01, 0.02, 0.015},
		[]float64{-0.01, 0.02, 0.00, 0.01, -0.02, 0.005},
		[]float64{0.01, 0.01, 0.02, 0.00, 0.01, 0.012},
	)
	w, err := Weights(r, 1e-5, 0)
	require.NoError(t, err)
	require.Len(t, w, 3)
	assert.InDelta(t, 1.0, floats.Norm(w, 1), 1e-12)
}

func TestWeightsOfASingleSeriesFollowItsMean(t *testing.T) {
	w, err := Weights(Stack([]float64{0.01, 0.03, 0.02}), 1e-5, 0)
	require.NoError(t, err)
	require.Len(t, w, 1)
	assert.InDelta(t, 1.0, w[0], 1e-15)

	w, err = Weights(Stack([]float64{-0.01, -0.03, -0.02}), 1e-5, 0)
	require.NoError(t, err)
	require.Len(t, w, 1)
	assert.InDelta(t, -1.0, w[0], 1e-15)

	_, err = Weights(Stack([]float64{0.01, -0.01, 0}), 1e-5, 0)
	assert.ErrorIs(t, err, ErrZeroWeights)
}

func TestWeightsWithSingularCovariance(t *testing.T) {
	r := Stack(
		[]float64{0.01, 0.03, 0.02},
		[]float64{0.25, 0.25, 0.25},
	)
	_, err := Weights(r, 0, 0)
	assert.ErrorIs(t, err, ErrSingularCovariance)

	w, err := Weights(r, 1e-5, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, floats.Norm(w, 1), 1e-12)
}

func TestApplyReproducesTheFactor(t *testing.T) {
	r := Stack(
		[]float64{0.02, 0.01, 0.03, -0.01},
		[]float64{-0.01, 0.02, 0.00, 0.01},
	)
	w, err := Weights(r, 1e-5, 0)
	require.NoError(t, err)
	f := Apply(r, w)
	require.Len(t, f, 4)
	for i := range f {
		assert.Equal(t, w[0]*r.At(i, 0)+w[1]*r.At(i, 1), f[i])
	}
	assert.Equal(t, f, Apply(FromRows(Rows(r)), w))
	assert.Panics(t, func() { Apply(r, []float64{1}) })
}

func TestResidualDropsWhatTheBenchmarksSpan(t *testing.T) {
	h := []float64{0.02, -0.01, 0.03, 0.00, 0.01}
	r, err := NewResidualizer(Stack(h), 0)
	require.NoError(t, err)

	e, err := r.Residual(h)
	require.NoError(t, err)
	for i := range e {
		assert.InDelta(t, 0, e[i], 1e-12)
	}

	f := make([]float64, len(h))
	for i := range f {
		f[i] = 0.005 - 2*h[i]
	}
	e, err = r.Residual(f)
	require.NoError(t, err)
	for i := range e {
		assert.InDelta(t, 0.005, e[i], 1e-12)
	}
	s, err := Objective(Stack(e), 1e-4, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.005*0.005/1e-4, s, 1e-9)

	_, err = r.Residual(f[:3])
	assert.Error(t, err)
}

func TestResidualizerOnCollinearBenchmarks(t *testing.T) {
	h := []float64{0.02, -0.01, 0.03, 0.00}
	_, err := NewResidualizer(Stack(h, h), 0)
	assert.ErrorIs(t, err, ErrSingularCovariance)

	r, err := NewResidualizer(Stack(h, h), 1e-4)
	require.NoError(t, err)
	e, err := r.Residual(h)
	require.NoError(t, err)
	for i := range e {
		assert.Less(t, math.Abs(e[i]), math.Abs(h[i])+1e-12)
	}
}

func TestStackPanicsOnMismatchedSeries(t *testing.T) {
	assert.Nil(t, Stack())
	assert.Panics(t, func() { Stack([]float64{1, 2}, []float64{1}) })
}

func TestGroup(t *testing.T) {
	g := &Group{}
	assert.Equal(t, 0.0, g.Return())
	g.Add(0.02, 3)
	g.Add(-0.02, 1)
	assert.Equal(t, 2, g.Len())
	assert.InDelta(t, 0.01, g.Return(), 1e-15)

	g = &Group{}
	g.Add(0.02, 0)
	g.Add(0.04, 0)
	assert.InDelta(t, 0.03, g.Return(), 1e-15)
}

func TestLeafReturns(t *testing.T) {
	c := feature.Characteristic{Index: 0, Name: "rank_me"}
	tr := tree.New(&tree.Split{
		Characteristic: c,
		Cutpoint:       0.5,
		Left:           &tree.Leaf{ID: 0, Depth: 1},
		Right:          &tree.Leaf{ID: 1, Depth: 1},
	})
	p := &panel.Panel{
		Characteristics: []string{"rank_me"},
		Months: []panel.Month{
			{ID: "2020-01", Observations: []panel.Observation{
				{Asset: "a", Return: 0.01, Weight: 1, LossWeight: 1, Characteristics: []float64{0.2}},
				{Asset: "b", Return: 0.03, Weight: 3, LossWeight: 1, Characteristics: []float64{0.4}},
				{Asset: "c", Return: 0.05, Weight: 2, LossWeight: 1, Characteristics: []float64{0.9}},
			}},
			{ID: "2020-02", Observations: []panel.Observation{
				{Asset: "a", Return: 0.02, Weight: 1, LossWeight: 1, Characteristics: []float64{0.1}},
			}},
		},
	}
	r, empty := LeafReturns(p, tr, false)
	rows, cols := r.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.InDelta(t, 0.025, r.At(0, 0), 1e-15)
	assert.InDelta(t, 0.05, r.At(0, 1), 1e-15)
	assert.InDelta(t, 0.02, r.At(1, 0), 1e-15)
	assert.Equal(t, 0.0, r.At(1, 1))
	assert.Equal(t, []int{0, 1}, empty)

	r, _ = LeafReturns(p, tr, true)
	assert.InDelta(t, 0.02, r.At(0, 0), 1e-15)
}

func TestSharpe(t *testing.T) {
	assert.Equal(t, 0.0, Sharpe(nil))
	assert.Equal(t, 0.0, Sharpe([]float64{0.5, 0.5, 0.5}))
	// mean 0.02, std 0.01
	assert.InDelta(t, 2*math.Sqrt(12), Sharpe([]float64{0.01, 0.02, 0.03}), 1e-9)
}

func TestMVESharpe(t *testing.T) {
	s, err := MVESharpe(nil, 1e-5, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	f := []float64{0.01, 0.02, 0.03}
	s, err = MVESharpe([][]float64{f}, 1e-5, 0)
	require.NoError(t, err)
	assert.InDelta(t, Sharpe(f), s, 1e-9)
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, Correlation(x, []float64{2, 4, 6, 8}), 1e-12)
	assert.InDelta(t, -1.0, Correlation(x, []float64{4, 3, 2, 1}), 1e-12)
	assert.Equal(t, 0.0, Correlation(x, []float64{1, 1, 1, 1}))

	assert.InDelta(t, 1.0, MaxAbsCorrelation(x, [][]float64{{1, 1, 1, 1}, {4, 3, 2, 1}}), 1e-12)
	assert.Equal(t, 0.0, MaxAbsCorrelation(x, nil))
}
