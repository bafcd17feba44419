package ptree

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pbanos/ptree/panel"
	"github.com/pbanos/ptree/portfolio"
)

/*
Prediction holds the factors of a model on a panel: one series per round,
with one return per month of the panel. EmptyLeaves holds, for every round,
how many (month, leaf) pairs had no observations and contributed 0 to the
factor.
*/
type Prediction struct {
	Months      []string
	Factors     [][]float64
	EmptyLeaves []int
}

/*
Predict takes a context, a model and a panel and returns the factors of the
model on the panel. Observations are routed to the leaves of every round's
tree, leaf returns are computed with the panel's weights and combined with
the leaf weights of the round, which are not fitted again.

It returns an *panel.InputShapeError if the panel is malformed or its
characteristics are not the ones the model was fitted with, and an error if
any round of the model is incomplete, as a model decoded from a damaged file
may be.
*/
func Predict(ctx context.Context, m *Model, pn *panel.Panel) (*Prediction, error) {
	if err := pn.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no model to predict with")
	}
	if len(pn.Characteristics) != len(m.Characteristics) {
		return nil, panel.ShapeErrorf("panel has %d characteristics, model was fitted with %d", len(pn.Characteristics), len(m.Characteristics))
	}
	for i, c := range m.Characteristics {
		if j := pn.CharacteristicIndex(c); j != i {
			return nil, panel.ShapeErrorf("model characteristic %d is %s, panel has it at %d", i, c, j)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	log := zerolog.Ctx(ctx)
	result := &Prediction{
		Months:      pn.MonthIDs(),
		Factors:     make([][]float64, len(m.Rounds)),
		EmptyLeaves: make([]int, len(m.Rounds)),
	}
	for i, r := range m.Rounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lr, empty := portfolio.LeafReturns(pn, r.Tree, m.Config.EqualWeight)
		result.Factors[i] = portfolio.Apply(lr, r.LeafWeights)
		for _, n := range empty {
			result.EmptyLeaves[i] += n
		}
		if result.EmptyLeaves[i] > 0 {
			log.Debug().
				Int("round", r.Index).
				Int("empty", result.EmptyLeaves[i]).
				Msg("Leaves without observations in some months")
		}
	}
	return result, nil
}

/*
Validate returns an error if any round of the model is incomplete: it has no
tree, its leaves are not numbered from left to right, a split uses a
characteristic the model does not have, a leaf has no weight or its
in-sample factor does not have a return for every month of the model.
*/
func (m *Model) Validate() error {
	for i, r := range m.Rounds {
		if err := r.validate(len(m.Characteristics)); err != nil {
			return fmt.Errorf("round %d: %w", i+1, err)
		}
		if len(r.Factor) != len(m.Months) {
			return fmt.Errorf("round %d: factor has %d months, model has %d", i+1, len(r.Factor), len(m.Months))
		}
	}
	return nil
}

/*
validate returns an error unless the round has a tree whose leaves are
numbered from left to right starting at 0, whose splits use one of the
numChars characteristics and which has a weight for every leaf.
*/
func (r *Round) validate(numChars int) error {
	if r == nil {
		return fmt.Errorf("missing round")
	}
	if r.Tree == nil || r.Tree.Root == nil {
		return fmt.Errorf("missing tree")
	}
	leaves := r.Tree.Leaves()
	if len(leaves) == 0 {
		return fmt.Errorf("tree has no leaves")
	}
	for i, l := range leaves {
		if l.ID != i {
			return fmt.Errorf("leaf %d has ID %d", i, l.ID)
		}
	}
	for _, s := range r.Tree.Splits() {
		if s.Left == nil || s.Right == nil {
			return fmt.Errorf("split on %s is missing a subtree", s.Characteristic.Name)
		}
		if s.Characteristic.Index < 0 || s.Characteristic.Index >= numChars {
			return fmt.Errorf("split on characteristic %d, model has %d", s.Characteristic.Index, numChars)
		}
	}
	if len(leaves) != len(r.LeafWeights) {
		return fmt.Errorf("%d leaves and %d leaf weights", len(leaves), len(r.LeafWeights))
	}
	return nil
}
