package ptree

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/pbanos/ptree/feature"
	"github.com/pbanos/ptree/metrics"
	"github.com/pbanos/ptree/panel"
	"github.com/pbanos/ptree/portfolio"
	"github.com/pbanos/ptree/tree"
)

/*
Pot represents the context in which trees are grown: the configuration,
the pruner deciding which splits are committed and the collector the
metrics of every fit are reported to.
*/
type Pot struct {
	cfg     Config
	pruner  Pruner
	metrics *metrics.Collector
}

// Option configures a Pot.
type Option func(*Pot)

// WithPruner makes the pot use the given pruner instead of the one
// derived from Config.MinImprovement.
func WithPruner(p Pruner) Option {
	return func(pot *Pot) {
		pot.pruner = p
	}
}

// WithMetrics makes the pot report to the given collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(pot *Pot) {
		pot.metrics = c
	}
}

/*
New takes a configuration and a number of options and returns a Pot that
grows trees with them, or an error if the configuration is not valid.
*/
func New(cfg Config, opts ...Option) (*Pot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.FirstSplit = append([]string(nil), cfg.FirstSplit...)
	cfg.SecondSplit = append([]string(nil), cfg.SecondSplit...)
	p := &Pot{cfg: cfg, pruner: FixedGainPruner(cfg.MinImprovement)}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the configuration of the pot.
func (p *Pot) Config() Config {
	return p.cfg
}

/*
Diagnostics holds what happened while growing a tree: the objective of the
benchmark factors alone, how many candidates were scored, found infeasible or
discarded, and the leaves that were left before reaching the maximum depth.
*/
type Diagnostics struct {
	Baseline    float64     `json:"baseline"`
	Scored      int         `json:"scored"`
	Infeasible  int         `json:"infeasible"`
	Discarded   int         `json:"discarded"`
	EarlyLeaves []tree.Leaf `json:"earlyLeaves,omitempty"`
}

/*
Round is a tree grown against a set of benchmark factors together with the
portfolio formed from its leaves: the mean-variance weights of the leaves,
their monthly returns (rows are months, columns leaves) and the resulting
factor.
*/
type Round struct {
	Index       int         `json:"index"`
	Tree        *tree.Tree  `json:"tree"`
	LeafWeights []float64   `json:"leafWeights"`
	LeafReturns [][]float64 `json:"leafReturns"`
	Factor      []float64   `json:"factor"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

/*
Grow takes a context, a panel and a number of benchmark factors, each with
one return per month of the panel, and returns the round with the tree grown
on the panel against them. Without benchmarks splits are scored on their
spread alone. With them a split scores the baseline objective of the
benchmarks plus the objective of the residual of its two-leaf mean-variance
factor on the benchmarks, so splits repeating what the benchmarks already
capture gain next to nothing. When the benchmarks are too collinear to
regress on, every candidate is discarded and the tree is a single leaf.

Growing does not fail because of the data: nodes that cannot be split become
leaves, so a panel too thin to split gives a single leaf tree. It returns an
*panel.InputShapeError if the panel or the benchmarks are malformed,
portfolio.ErrSingularCovariance if the leaf returns cannot be combined and
the context's error if it is done before the tree is complete.
*/
func (p *Pot) Grow(ctx context.Context, pn *panel.Panel, benchmarks [][]float64) (*Round, error) {
	if err := pn.Validate(); err != nil {
		return nil, err
	}
	if pn.Len() < 2 {
		return nil, panel.ShapeErrorf("at least 2 months are required to grow a tree, got %d", pn.Len())
	}
	for i, b := range benchmarks {
		if len(b) != pn.Len() {
			return nil, panel.ShapeErrorf("benchmark factor %d has %d months, panel has %d", i+1, len(b), pn.Len())
		}
	}
	first, err := feature.Resolve(pn.Characteristics, p.cfg.FirstSplit)
	if err != nil {
		return nil, panel.ShapeErrorf("first split characteristics: %v", err)
	}
	second, err := feature.Resolve(pn.Characteristics, p.cfg.SecondSplit)
	if err != nil {
		return nil, panel.ShapeErrorf("second split characteristics: %v", err)
	}
	s := &splitter{cfg: p.cfg, panel: pn}
	if len(benchmarks) > 0 {
		s.h = portfolio.Stack(benchmarks...)
		s.baseline, err = portfolio.Objective(s.h, p.cfg.LambdaCov, p.cfg.LambdaMean)
		if err != nil {
			return nil, fmt.Errorf("scoring benchmark factors: %w", err)
		}
		s.residualizer, err = portfolio.NewResidualizer(s.h, p.cfg.LambdaCov)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Int("benchmarks", len(benchmarks)).Msg("Benchmark factors cannot be regressed on")
		}
	}
	g := &grower{
		pot:      p,
		splitter: s,
		first:    first,
		second:   second,
		log:      zerolog.Ctx(ctx),
	}
	if p.cfg.RandomSplit {
		g.rnd = rand.New(rand.NewSource(p.cfg.Seed))
	}
	root, err := g.grow(ctx, rootScope(pn), 0)
	if err != nil {
		return nil, fmt.Errorf("growing tree: %w", err)
	}
	t := tree.New(root)
	r, _ := portfolio.LeafReturns(pn, t, p.cfg.EqualWeight)
	w, err := portfolio.Weights(r, p.cfg.LambdaCov, p.cfg.LambdaMean)
	if err != nil {
		return nil, fmt.Errorf("weighting %d leaves: %w", t.NumLeaves(), err)
	}
	g.diagnostics.Baseline = s.baseline
	return &Round{
		Tree:        t,
		LeafWeights: w,
		LeafReturns: portfolio.Rows(r),
		Factor:      portfolio.Apply(r, w),
		Diagnostics: g.diagnostics,
	}, nil
}

// grower holds the state of the growth of a single tree.
type grower struct {
	pot           *Pot
	splitter      *splitter
	first, second []feature.Characteristic
	rnd           *rand.Rand
	leaves        int
	diagnostics   Diagnostics
	log           *zerolog.Logger
}

/*
grow takes a context, the scope of a node and its depth and returns the
subtree rooted at the node, developing it depth first with left subtrees
first so that leaves get their IDs from left to right.
*/
func (g *grower) grow(ctx context.Context, sc scope, depth int) (tree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth >= g.pot.cfg.MaxDepth {
		return g.leaf(depth, tree.MaxDepth), nil
	}
	part, counts, err := g.splitter.best(ctx, sc, depth, g.characteristics(depth))
	if err != nil {
		return nil, err
	}
	g.count(counts)
	if part == nil {
		return g.leaf(depth, tree.Infeasible), nil
	}
	prune, err := g.pot.pruner.Prune(ctx, part)
	if err != nil {
		return nil, fmt.Errorf("pruning split on %s at %f: %w", part.Characteristic.Name, part.Cutpoint, err)
	}
	if prune {
		return g.leaf(depth, tree.Pruned), nil
	}
	g.log.Debug().
		Int("depth", depth).
		Str("characteristic", part.Characteristic.Name).
		Float64("cutpoint", part.Cutpoint).
		Float64("gain", part.Gain).
		Msg("Split committed")
	g.pot.metrics.Split()
	left, right := sc.split(g.splitter.panel, part.Candidate)
	ln, err := g.grow(ctx, left, depth+1)
	if err != nil {
		return nil, err
	}
	rn, err := g.grow(ctx, right, depth+1)
	if err != nil {
		return nil, err
	}
	return &tree.Split{
		Characteristic: part.Characteristic,
		Cutpoint:       part.Cutpoint,
		Depth:          depth,
		Gain:           part.Gain,
		Left:           ln,
		Right:          rn,
	}, nil
}

/*
characteristics returns the characteristics a node at the given depth may
split on: a single one drawn at random when splits are random.
*/
func (g *grower) characteristics(depth int) []feature.Characteristic {
	chars := g.second
	if depth == 0 {
		chars = g.first
	}
	if g.rnd == nil || len(chars) == 0 {
		return chars
	}
	return []feature.Characteristic{chars[g.rnd.Intn(len(chars))]}
}

func (g *grower) leaf(depth int, reason tree.LeafReason) *tree.Leaf {
	l := &tree.Leaf{ID: g.leaves, Depth: depth, Reason: reason}
	g.leaves++
	g.pot.metrics.Leaf(string(reason))
	if reason != tree.MaxDepth {
		g.diagnostics.EarlyLeaves = append(g.diagnostics.EarlyLeaves, *l)
		g.log.Debug().
			Int("leaf", l.ID).
			Int("depth", depth).
			Str("reason", string(reason)).
			Msg("Node left as leaf")
	}
	return l
}

func (g *grower) count(counts map[string]int) {
	g.diagnostics.Scored += counts[outcomeScored]
	g.diagnostics.Infeasible += counts[outcomeInfeasible]
	g.diagnostics.Discarded += counts[outcomeDiscarded]
	for outcome, n := range counts {
		g.pot.metrics.Candidates(outcome, n)
	}
}

// leafReturns returns the in-sample leaf returns of the round as a matrix.
func (r *Round) leafReturns() *mat.Dense {
	return portfolio.FromRows(r.LeafReturns)
}
