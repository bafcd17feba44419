package ptree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/pbanos/ptree/feature"
	"github.com/pbanos/ptree/metrics"
	"github.com/pbanos/ptree/panel"
	"github.com/pbanos/ptree/portfolio"
	"github.com/pbanos/ptree/tree"
)

type returnFunc func(month int, x []float64, rnd *rand.Rand) float64

/*
synthPanel returns a panel with the given number of months and assets per
month, whose characteristics are random permutations of the ranks
(i+0.5)/assets in every month, weights uniform in [1,2) and returns given by
ret.
*/
func synthPanel(months, assets int, chars []string, seed int64, ret returnFunc) *panel.Panel {
	rnd := rand.New(rand.NewSource(seed))
	p := &panel.Panel{Characteristics: chars}
	for m := 0; m < months; m++ {
		month := panel.Month{ID: fmt.Sprintf("2000-%03d", m)}
		perms := make([][]int, len(chars))
		for c := range chars {
			perms[c] = rnd.Perm(assets)
		}
		for a := 0; a < assets; a++ {
			x := make([]float64, len(chars))
			for c := range chars {
				x[c] = (float64(perms[c][a]) + 0.5) / float64(assets)
			}
			month.Observations = append(month.Observations, panel.Observation{
				Asset:           fmt.Sprintf("a%03d", a),
				Return:          ret(m, x, rnd),
				Weight:          1 + rnd.Float64(),
				LossWeight:      1,
				Characteristics: x,
			})
		}
		p.Months = append(p.Months, month)
	}
	return p
}

func side(v float64) float64 {
	if v > 0.5 {
		return 1
	}
	return -1
}

// marketPanel has positive mean returns unrelated to characteristics.
func marketPanel(months, assets int) *panel.Panel {
	return synthPanel(months, assets, []string{"rank_me", "rank_bm"}, 1, func(_ int, _ []float64, rnd *rand.Rand) float64 {
		return 0.02 + 0.005*rnd.NormFloat64()
	})
}

// plantedPanel has returns of +2% above the median of rank_a and -2%
// below it, plus some noise.
func plantedPanel() *panel.Panel {
	return synthPanel(24, 20, []string{"rank_a", "rank_b"}, 2, func(_ int, x []float64, rnd *rand.Rand) float64 {
		return 0.02*side(x[0]) + 0.002*rnd.NormFloat64()
	})
}

/*
twoSignalPanel has a strong signal on rank_a and an independent weaker one
on rank_b, both varying over time, while rank_c is noise.
*/
func twoSignalPanel() *panel.Panel {
	sig := rand.New(rand.NewSource(11))
	s0 := make([]float64, 60)
	s1 := make([]float64, 60)
	for i := range s0 {
		s0[i] = 0.02 + 0.01*sig.NormFloat64()
		s1[i] = 0.01 + 0.01*sig.NormFloat64()
	}
	return synthPanel(60, 40, []string{"rank_a", "rank_b", "rank_c"}, 3, func(m int, x []float64, rnd *rand.Rand) float64 {
		return s0[m]*side(x[0]) + s1[m]*side(x[1]) + 0.01*rnd.NormFloat64()
	})
}

func twoSignalConfig() Config {
	cfg := DefaultConfig()
	cfg.MinLeafSize = 5
	cfg.MaxDepth = 1
	cfg.NumCutpoints = 3
	cfg.NumBoostingRounds = 2
	return cfg
}

func vwMarket(m panel.Month) float64 {
	var wr, w float64
	for _, o := range m.Observations {
		wr += o.Weight * o.Return
		w += o.Weight
	}
	return wr / w
}

func TestSingleLeafOnThinCrossSections(t *testing.T) {
	p := marketPanel(12, 10)
	cfg := DefaultConfig()
	cfg.NumBoostingRounds = 1
	m, err := Fit(context.Background(), p, cfg)
	require.NoError(t, err)
	require.Len(t, m.Rounds, 1)
	r := m.Rounds[0]
	require.Equal(t, 1, r.Tree.NumLeaves())
	assert.Equal(t, tree.Infeasible, r.Tree.Leaves()[0].Reason)
	require.Len(t, r.Factor, 12)
	for i, month := range p.Months {
		assert.InDelta(t, vwMarket(month), r.Factor[i], 1e-12)
	}
	assert.Equal(t, []tree.Leaf{{ID: 0, Depth: 0, Reason: tree.Infeasible}}, r.Diagnostics.EarlyLeaves)
}

func TestSingleLeafShortsAFallingMarket(t *testing.T) {
	p := synthPanel(12, 10, []string{"rank_me", "rank_bm"}, 1, func(_ int, _ []float64, rnd *rand.Rand) float64 {
		return -0.02 + 0.005*rnd.NormFloat64()
	})
	cfg := DefaultConfig()
	cfg.NumBoostingRounds = 1
	m, err := Fit(context.Background(), p, cfg)
	require.NoError(t, err)
	r := m.Rounds[0]
	require.Equal(t, 1, r.Tree.NumLeaves())
	require.Len(t, r.LeafWeights, 1)
	assert.InDelta(t, -1, r.LeafWeights[0], 1e-12)
	for i, month := range p.Months {
		assert.InDelta(t, -vwMarket(month), r.Factor[i], 1e-12)
	}
	assert.Greater(t, portfolio.Sharpe(r.Factor), 0.0)
}

func TestDegenerateDataDoesNotFailAnyRound(t *testing.T) {
	m, err := Fit(context.Background(), marketPanel(12, 10), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, m.Rounds, 3)
	for i, r := range m.Rounds {
		assert.Equal(t, i+1, r.Index)
		assert.Equal(t, 1, r.Tree.NumLeaves())
	}
}

func TestForcedSplitOnPlantedCharacteristic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLeafSize = 2
	cfg.MaxDepth = 1
	// the median is the middle of 3 quantile cutpoints, while with the
	// default 4 the grid skips it and the best root split is at 0.575
	cfg.NumCutpoints = 3
	cfg.NumBoostingRounds = 1
	m, err := Fit(context.Background(), plantedPanel(), cfg)
	require.NoError(t, err)
	r := m.Rounds[0]
	split, ok := r.Tree.Root.(*tree.Split)
	require.True(t, ok, "root should be a split")
	assert.Equal(t, "rank_a", split.Characteristic.Name)
	assert.InDelta(t, 0.5, split.Cutpoint, 0.05)
	assert.Greater(t, split.Gain, 0.0)
	assert.Equal(t, 2, r.Tree.NumLeaves())
	assert.Greater(t, portfolio.Sharpe(r.Factor), 3.0)
	assert.Less(t, r.LeafWeights[0], 0.0)
	assert.Greater(t, r.LeafWeights[1], 0.0)
}

func TestBoostingFindsTheSecondSignal(t *testing.T) {
	m, err := Fit(context.Background(), twoSignalPanel(), twoSignalConfig())
	require.NoError(t, err)
	require.Len(t, m.Rounds, 2)
	first, ok := m.Rounds[0].Tree.Root.(*tree.Split)
	require.True(t, ok)
	assert.Equal(t, "rank_a", first.Characteristic.Name)
	second, ok := m.Rounds[1].Tree.Root.(*tree.Split)
	require.True(t, ok)
	assert.Equal(t, "rank_b", second.Characteristic.Name)
	assert.Greater(t, m.Rounds[1].Diagnostics.Baseline, 0.0)
	assert.Equal(t, 0.0, m.Rounds[0].Diagnostics.Baseline)
}

func TestBoostingOrthogonalizes(t *testing.T) {
	ctx := context.Background()
	p := twoSignalPanel()
	pot, err := New(twoSignalConfig())
	require.NoError(t, err)
	m, err := pot.Boost(ctx, p)
	require.NoError(t, err)
	f1 := m.Rounds[0].Factor
	unconditioned, err := pot.Grow(ctx, p, nil)
	require.NoError(t, err)
	boosted := math.Abs(portfolio.Correlation(m.Rounds[1].Factor, f1))
	assert.Less(t, boosted, math.Abs(portfolio.Correlation(unconditioned.Factor, f1)))
	assert.Less(t, boosted, 0.5)
	assert.Less(t, portfolio.MaxAbsCorrelation(m.Rounds[1].Factor, m.Factors()[:1]), 0.5)
}

func TestFitIsDeterministic(t *testing.T) {
	p := twoSignalPanel()
	cfg := twoSignalConfig()
	cfg.MaxDepth = 3
	cfg.Workers = 1
	m1, err := Fit(context.Background(), p, cfg)
	require.NoError(t, err)
	cfg.Workers = 8
	m2, err := Fit(context.Background(), p, cfg)
	require.NoError(t, err)
	for i := range m1.Rounds {
		assert.Equal(t, m1.Rounds[i].Tree, m2.Rounds[i].Tree)
		assert.Equal(t, m1.Rounds[i].Factor, m2.Rounds[i].Factor)
		assert.Equal(t, m1.Rounds[i].LeafWeights, m2.Rounds[i].LeafWeights)
	}
}

func TestRandomSplitIsReproducible(t *testing.T) {
	p := twoSignalPanel()
	cfg := twoSignalConfig()
	cfg.MaxDepth = 2
	cfg.RandomSplit = true
	cfg.Seed = 7
	m1, err := Fit(context.Background(), p, cfg)
	require.NoError(t, err)
	m2, err := Fit(context.Background(), p, cfg)
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
}

func TestLeavesPartitionEveryMonth(t *testing.T) {
	p := twoSignalPanel()
	cfg := twoSignalConfig()
	cfg.MaxDepth = 3
	m, err := Fit(context.Background(), p, cfg)
	require.NoError(t, err)
	for _, r := range m.Rounds {
		leaves := r.Tree.Leaves()
		require.Greater(t, len(leaves), 1)
		paths := make([][]feature.Criterion, len(leaves))
		for i, l := range leaves {
			for _, in := range r.Tree.Path(l.ID) {
				paths[i] = append(paths[i], in)
			}
		}
		for _, month := range p.Months {
			total := 0
			for _, o := range month.Observations {
				matches := 0
				for _, path := range paths {
					ok := true
					for _, c := range path {
						ok = ok && c.SatisfiedBy(o.Characteristics)
					}
					if ok {
						matches++
					}
				}
				assert.Equal(t, 1, matches, "month %s asset %s", month.ID, o.Asset)
				total += matches
			}
			assert.Equal(t, len(month.Observations), total)
		}
	}
}

func TestCommittedSplitsRespectMinLeafSize(t *testing.T) {
	p := twoSignalPanel()
	cfg := twoSignalConfig()
	cfg.MaxDepth = 3
	cfg.MinLeafSize = 6
	m, err := Fit(context.Background(), p, cfg)
	require.NoError(t, err)
	var check func(n tree.Node, obs []panel.Observation)
	check = func(n tree.Node, obs []panel.Observation) {
		s, ok := n.(*tree.Split)
		if !ok {
			return
		}
		var left, right []panel.Observation
		for _, o := range obs {
			if s.Route(o.Characteristics) == s.Left {
				left = append(left, o)
			} else {
				right = append(right, o)
			}
		}
		assert.GreaterOrEqual(t, len(left), cfg.MinLeafSize)
		assert.GreaterOrEqual(t, len(right), cfg.MinLeafSize)
		check(s.Left, left)
		check(s.Right, right)
	}
	for _, r := range m.Rounds {
		require.NotEmpty(t, r.Tree.Splits())
		for _, month := range p.Months {
			check(r.Tree.Root, month.Observations)
		}
	}
}

func TestLeafWeightsReproduceTheFactor(t *testing.T) {
	m, err := Fit(context.Background(), twoSignalPanel(), twoSignalConfig())
	require.NoError(t, err)
	for _, r := range m.Rounds {
		assert.Equal(t, r.Factor, portfolio.Apply(r.leafReturns(), r.LeafWeights))
	}
}

func TestWhitelists(t *testing.T) {
	cfg := twoSignalConfig()
	cfg.NumBoostingRounds = 1
	cfg.MaxDepth = 2
	cfg.FirstSplit = []string{"rank_c"}
	cfg.SecondSplit = []string{"rank_b"}
	m, err := Fit(context.Background(), twoSignalPanel(), cfg)
	require.NoError(t, err)
	splits := m.Rounds[0].Tree.Splits()
	require.NotEmpty(t, splits)
	assert.Equal(t, "rank_c", splits[0].Characteristic.Name)
	for _, s := range splits[1:] {
		assert.Equal(t, "rank_b", s.Characteristic.Name)
	}

	cfg.FirstSplit = []string{"rank_z"}
	_, err = Fit(context.Background(), twoSignalPanel(), cfg)
	var shapeErr *panel.InputShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestPruners(t *testing.T) {
	ctx := context.Background()
	p := plantedPanel()
	cfg := DefaultConfig()
	cfg.MinLeafSize = 2
	cfg.MaxDepth = 1

	cfg.MinImprovement = 1e9
	pot, err := New(cfg)
	require.NoError(t, err)
	r, err := pot.Grow(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Tree.NumLeaves())
	assert.Equal(t, tree.Pruned, r.Tree.Leaves()[0].Reason)

	pot, err = New(cfg, WithPruner(NoPruner()))
	require.NoError(t, err)
	r, err = pot.Grow(ctx, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Tree.NumLeaves())
	assert.Greater(t, r.Diagnostics.Scored, 0)

	pruned, err := DefaultPruner().Prune(ctx, &Partition{Gain: math.NaN()})
	require.NoError(t, err)
	assert.True(t, pruned)
	pruned, err = DefaultPruner().Prune(ctx, &Partition{Gain: 0.1})
	require.NoError(t, err)
	assert.False(t, pruned)
}

func TestBoostAbortsOnRoundFailure(t *testing.T) {
	failing := PrunerFunc(func(ctx context.Context, p *Partition) (bool, error) {
		if p.Baseline > 0 {
			return false, errors.New("boom")
		}
		return false, nil
	})
	pot, err := New(twoSignalConfig(), WithPruner(failing))
	require.NoError(t, err)
	m, err := pot.Boost(context.Background(), twoSignalPanel())
	assert.Nil(t, m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boosting round 2")
}

func TestBoostStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fit(ctx, twoSignalPanel(), twoSignalConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGrowRejectsMalformedInput(t *testing.T) {
	ctx := context.Background()
	pot, err := New(twoSignalConfig())
	require.NoError(t, err)
	p := twoSignalPanel()
	var shapeErr *panel.InputShapeError

	_, err = pot.Grow(ctx, p, [][]float64{make([]float64, 10)})
	assert.True(t, errors.As(err, &shapeErr))

	_, err = pot.Grow(ctx, p.Slice(0, 1), nil)
	assert.True(t, errors.As(err, &shapeErr))

	p.Months[3].Observations[2].Characteristics = []float64{0.5}
	_, err = pot.Grow(ctx, p, nil)
	assert.True(t, errors.As(err, &shapeErr))

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestFitLogsAndReportsMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	ctx := logger.WithContext(context.Background())
	reg := prometheus.NewRegistry()
	pot, err := New(twoSignalConfig(), WithMetrics(metrics.New(reg)))
	require.NoError(t, err)
	_, err = pot.Boost(ctx, twoSignalPanel())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Split committed")
	assert.Contains(t, buf.String(), "Boosting round completed")
	n, err := testutil.GatherAndCount(reg, "ptree_splits_committed_total", "ptree_boosting_rounds_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestModelFactors(t *testing.T) {
	p := twoSignalPanel()
	m, err := Fit(context.Background(), p, twoSignalConfig())
	require.NoError(t, err)
	assert.Equal(t, p.MonthIDs(), m.Months)
	assert.Equal(t, p.Characteristics, m.Characteristics)
	factors := m.Factors()
	require.Len(t, factors, 2)
	for _, f := range factors {
		assert.Len(t, f, p.Len())
		assert.Greater(t, stat.Mean(f, nil), 0.0)
	}
}
