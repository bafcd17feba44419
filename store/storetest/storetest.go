/*
Package storetest checks store.ModelStore implementations against the
behaviour the interface documents.
*/
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbanos/ptree"
	"github.com/pbanos/ptree/feature"
	"github.com/pbanos/ptree/store"
	"github.com/pbanos/ptree/tree"
)

// Model returns a small two round model to store.
func Model() *ptree.Model {
	split := &tree.Split{
		Characteristic: feature.Characteristic{Name: "rank_me", Index: 0},
		Cutpoint:       0.5,
		Gain:           0.2,
		Left:           &tree.Leaf{ID: 0, Depth: 1, Reason: tree.MaxDepth},
		Right:          &tree.Leaf{ID: 1, Depth: 1, Reason: tree.MaxDepth},
	}
	return &ptree.Model{
		Config:          ptree.DefaultConfig(),
		Characteristics: []string{"rank_me"},
		Months:          []string{"2020-01", "2020-02"},
		Rounds: []*ptree.Round{
			{
				Index:       1,
				Tree:        tree.New(split),
				LeafWeights: []float64{-0.4, 0.6},
				LeafReturns: [][]float64{{0.01, 0.03}, {0.02, 0.01}},
				Factor:      []float64{0.014, -0.002},
			},
			{
				Index:       2,
				Tree:        tree.New(&tree.Leaf{Reason: tree.Infeasible}),
				LeafWeights: []float64{1},
				LeafReturns: [][]float64{{0.01}, {0.02}},
				Factor:      []float64{0.01, 0.02},
			},
		},
	}
}

/*
Run takes a test and an empty store and checks that models are created with
fresh IDs, kept apart from the copies callers hold, updated and deleted.
*/
func Run(t *testing.T, s store.ModelStore) {
	ctx := context.Background()
	m := Model()
	require.NoError(t, s.Create(ctx, m))
	require.NotEmpty(t, m.ID)
	defer s.Delete(ctx, m)

	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	got.Rounds[0].LeafWeights[0] = 1
	got.Months = nil
	m.Rounds[1].Factor[0] = 0.05
	got, err = s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, -0.4, got.Rounds[0].LeafWeights[0])
	assert.Equal(t, []string{"2020-01", "2020-02"}, got.Months)
	assert.Equal(t, 0.01, got.Rounds[1].Factor[0])

	m.Months = []string{"2020-03", "2020-04"}
	require.NoError(t, s.Store(ctx, m))
	got, err = s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	other := Model()
	require.NoError(t, s.Create(ctx, other))
	assert.NotEqual(t, m.ID, other.ID)
	require.NoError(t, s.Delete(ctx, other))

	missing, err := s.Get(ctx, store.NewID())
	require.NoError(t, err)
	assert.Nil(t, missing)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Get(cancelled, m.ID)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.Delete(ctx, m))
	got, err = s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, s.Delete(ctx, m))
}
