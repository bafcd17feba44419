package ptree

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/pbanos/ptree/feature"
	"github.com/pbanos/ptree/panel"
	"github.com/pbanos/ptree/portfolio"
)

/*
Candidate is a threshold on a characteristic considered to split a node:
observations at or below the cutpoint go left, the rest go right.
*/
type Candidate struct {
	Characteristic feature.Characteristic
	Cutpoint       float64
}

/*
Partition represents the best split found for a node, with the objective
reached by the split together with the benchmark factors (Score), the
objective of the benchmark factors alone (Baseline) and the difference
between them (Gain). The gain is what the split adds beyond the benchmarks:
the objective of the part of its leaf factor they do not span.
*/
type Partition struct {
	Candidate
	Depth    int
	Score    float64
	Baseline float64
	Gain     float64
}

// Candidate outcomes, as reported to metrics.
const (
	outcomeScored     = "scored"
	outcomeInfeasible = "infeasible"
	outcomeDiscarded  = "discarded"
)

// scope holds, for every month of the panel, the indices of the
// observations in a node.
type scope [][]int

func rootScope(p *panel.Panel) scope {
	sc := make(scope, len(p.Months))
	for i, m := range p.Months {
		sc[i] = make([]int, len(m.Observations))
		for j := range sc[i] {
			sc[i][j] = j
		}
	}
	return sc
}

// minLen returns the size of the smallest monthly cross-section in scope.
func (sc scope) minLen() int {
	min := -1
	for _, idx := range sc {
		if min < 0 || len(idx) < min {
			min = len(idx)
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// split returns the scopes of the left and right children of a split.
func (sc scope) split(p *panel.Panel, c Candidate) (left, right scope) {
	left = make(scope, len(sc))
	right = make(scope, len(sc))
	for i, idx := range sc {
		obs := p.Months[i].Observations
		for _, j := range idx {
			if obs[j].Characteristics[c.Characteristic.Index] <= c.Cutpoint {
				left[i] = append(left[i], j)
			} else {
				right[i] = append(right[i], j)
			}
		}
	}
	return left, right
}

/*
isFeasible takes a candidate, a node scope, the panel and the minimum leaf
size and returns whether both sides of the split would hold at least
minLeafSize observations in every month. It stops on the first month that
fails.
*/
func isFeasible(c Candidate, sc scope, p *panel.Panel, minLeafSize int) bool {
	for i, idx := range sc {
		obs := p.Months[i].Observations
		var below int
		for _, j := range idx {
			if obs[j].Characteristics[c.Characteristic.Index] <= c.Cutpoint {
				below++
			}
		}
		if below < minLeafSize || len(idx)-below < minLeafSize {
			return false
		}
	}
	return true
}

/*
cutpoints takes the sorted values of a characteristic and a number n and
returns the distinct empirical quantiles of the values at j/(n+1) for
j = 1..n, in ascending order.
*/
func cutpoints(sorted []float64, n int) []float64 {
	if len(sorted) == 0 {
		return nil
	}
	result := make([]float64, 0, n)
	for j := 1; j <= n; j++ {
		q := stat.Quantile(float64(j)/float64(n+1), stat.Empirical, sorted, nil)
		if len(result) == 0 || q > result[len(result)-1] {
			result = append(result, q)
		}
	}
	return result
}

/*
splitter finds the best split for the nodes of a tree grown against a given
set of benchmark factors.
*/
type splitter struct {
	cfg          Config
	panel        *panel.Panel
	h            *mat.Dense
	residualizer *portfolio.Residualizer
	baseline     float64
}

type evaluation struct {
	outcome string
	score   float64
}

/*
candidates takes a node scope and the characteristics the node may split on
and returns every candidate for it, characteristic by characteristic and by
ascending cutpoint within each.
*/
func (s *splitter) candidates(sc scope, chars []feature.Characteristic) []Candidate {
	var result []Candidate
	var values []float64
	for _, c := range chars {
		values = values[:0]
		for i, idx := range sc {
			obs := s.panel.Months[i].Observations
			for _, j := range idx {
				values = append(values, obs[j].Characteristics[c.Index])
			}
		}
		sort.Float64s(values)
		for _, cut := range cutpoints(values, s.cfg.NumCutpoints) {
			result = append(result, Candidate{Characteristic: c, Cutpoint: cut})
		}
	}
	return result
}

// sides returns the monthly returns of the left and right sides of the
// split.
func (s *splitter) sides(c Candidate, sc scope) (left, right []float64) {
	left = make([]float64, len(sc))
	right = make([]float64, len(sc))
	for i, idx := range sc {
		obs := s.panel.Months[i].Observations
		var below, above portfolio.Group
		for _, j := range idx {
			o := &obs[j]
			w := o.LossWeight
			if !s.cfg.EqualWeight {
				w *= o.Weight
			}
			if o.Characteristics[c.Characteristic.Index] <= c.Cutpoint {
				below.Add(o.Return, w)
			} else {
				above.Add(o.Return, w)
			}
		}
		left[i], right[i] = below.Return(), above.Return()
	}
	return left, right
}

// spread returns the monthly return of the right side of the split minus
// that of the left side.
func (s *splitter) spread(c Candidate, sc scope) []float64 {
	left, right := s.sides(c, sc)
	for i := range right {
		right[i] -= left[i]
	}
	return right
}

/*
evaluate scores a single candidate: infeasible candidates are not scored and
candidates whose objective cannot be computed or is not a number are
discarded.

Without benchmark factors a candidate scores the objective of its spread.
With them it scores the baseline plus the objective of the residual of its
own two-leaf mean-variance factor on the benchmarks, so a split the
benchmarks already span gains nothing.
*/
func (s *splitter) evaluate(c Candidate, sc scope) evaluation {
	if !isFeasible(c, sc, s.panel, s.cfg.MinLeafSize) {
		return evaluation{outcome: outcomeInfeasible}
	}
	if s.h == nil {
		score, err := portfolio.Objective(portfolio.Stack(s.spread(c, sc)), s.cfg.LambdaCov, s.cfg.LambdaMean)
		if err != nil || math.IsNaN(score) {
			return evaluation{outcome: outcomeDiscarded}
		}
		return evaluation{outcome: outcomeScored, score: score}
	}
	if s.residualizer == nil {
		return evaluation{outcome: outcomeDiscarded}
	}
	leaves := portfolio.Stack(s.sides(c, sc))
	w, err := portfolio.Weights(leaves, s.cfg.LambdaCov, s.cfg.LambdaMean)
	if err != nil {
		return evaluation{outcome: outcomeDiscarded}
	}
	e, err := s.residualizer.Residual(portfolio.Apply(leaves, w))
	if err != nil {
		return evaluation{outcome: outcomeDiscarded}
	}
	gain, err := portfolio.Objective(portfolio.Stack(e), s.cfg.LambdaCov, s.cfg.LambdaMean)
	if err != nil || math.IsNaN(gain) {
		return evaluation{outcome: outcomeDiscarded}
	}
	return evaluation{outcome: outcomeScored, score: s.baseline + gain}
}

/*
evaluateAll scores the candidates with a pool of workers, each writing the
evaluation of a candidate to its own slot of the result.
*/
func (s *splitter) evaluateAll(ctx context.Context, sc scope, cands []Candidate) ([]evaluation, error) {
	evals := make([]evaluation, len(cands))
	workers := s.cfg.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(cands) {
		workers = len(cands)
	}
	tasks := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range tasks {
				evals[j] = s.evaluate(cands[j], sc)
			}
		}()
	}
push:
	for j := range cands {
		select {
		case <-ctx.Done():
			break push
		case tasks <- j:
		}
	}
	close(tasks)
	wg.Wait()
	return evals, ctx.Err()
}

/*
best takes a context, a node scope, its depth and the characteristics it may
split on and returns the partition for the best scoring feasible candidate,
or nil if there is none. Ties go to the first candidate in enumeration order.
The counts of candidates by outcome are returned too.
*/
func (s *splitter) best(ctx context.Context, sc scope, depth int, chars []feature.Characteristic) (*Partition, map[string]int, error) {
	counts := make(map[string]int, 3)
	if sc.minLen() < 2*s.cfg.MinLeafSize {
		return nil, counts, nil
	}
	cands := s.candidates(sc, chars)
	evals, err := s.evaluateAll(ctx, sc, cands)
	if err != nil {
		return nil, counts, err
	}
	var result *Partition
	for i, e := range evals {
		counts[e.outcome]++
		if e.outcome != outcomeScored {
			continue
		}
		if result == nil || e.score > result.Score {
			result = &Partition{
				Candidate: cands[i],
				Depth:     depth,
				Score:     e.score,
				Baseline:  s.baseline,
				Gain:      e.score - s.baseline,
			}
		}
	}
	return result, counts, nil
}
