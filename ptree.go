/*
Package ptree grows panel trees: trees that split the cross-section of a
panel of assets on thresholds of their ranked characteristics, chosen to
maximize the Sharpe ratio of the long-short spread they form, and that
combine their leaves into a factor with mean-variance weights.

Boosting grows a sequence of trees, each one against the factors of the
previous ones, to extract factors that earlier ones do not explain.

A Pot grows the trees of a fit:

	pot, err := ptree.New(ptree.DefaultConfig())
	if err != nil {
		return err
	}
	model, err := pot.Boost(ctx, p)

The logger attached to the context with zerolog's WithContext is used to
report progress.
*/
package ptree

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pbanos/ptree/panel"
	"github.com/pbanos/ptree/portfolio"
)

/*
Model is a fitted sequence of boosting rounds along with the configuration
and the panel characteristics and months they were fitted with. ID is set
when the model is stored.
*/
type Model struct {
	ID              string   `json:"id,omitempty"`
	Config          Config   `json:"config"`
	Characteristics []string `json:"characteristics"`
	Months          []string `json:"months"`
	Rounds          []*Round `json:"rounds"`
}

// Factors returns the in-sample factor of every round, in round order.
func (m *Model) Factors() [][]float64 {
	factors := make([][]float64, len(m.Rounds))
	for i, r := range m.Rounds {
		factors[i] = r.Factor
	}
	return factors
}

/*
Boost takes a context and a panel and grows Config.NumBoostingRounds trees on
it: the first one without benchmarks and every following one against the
factors of all the previous ones. It returns the model with all the rounds
or an error. If any round fails, the whole fit fails and no model is
returned.
*/
func (p *Pot) Boost(ctx context.Context, pn *panel.Panel) (*Model, error) {
	start := time.Now()
	log := zerolog.Ctx(ctx)
	rounds := make([]*Round, 0, p.cfg.NumBoostingRounds)
	factors := make([][]float64, 0, p.cfg.NumBoostingRounds)
	for k := 1; k <= p.cfg.NumBoostingRounds; k++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("boosting round %d: %w", k, err)
		}
		r, err := p.Grow(ctx, pn, factors)
		if err != nil {
			return nil, fmt.Errorf("boosting round %d: %w", k, err)
		}
		r.Index = k
		rounds = append(rounds, r)
		factors = append(factors, r.Factor)
		p.metrics.Round()
		log.Info().
			Int("round", k).
			Int("leaves", r.Tree.NumLeaves()).
			Int("depth", r.Tree.Depth()).
			Float64("sharpe", portfolio.Sharpe(r.Factor)).
			Msg("Boosting round completed")
	}
	p.metrics.Fit(start)
	return &Model{
		Config:          p.cfg,
		Characteristics: append([]string(nil), pn.Characteristics...),
		Months:          pn.MonthIDs(),
		Rounds:          rounds,
	}, nil
}

/*
Fit takes a context, a panel and a configuration and returns the model
boosted on the panel with it.
*/
func Fit(ctx context.Context, pn *panel.Panel, cfg Config) (*Model, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return p.Boost(ctx, pn)
}
