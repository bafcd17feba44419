package store

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbanos/ptree"
	"github.com/pbanos/ptree/panel"
)

func fitModel(t *testing.T) *ptree.Model {
	rnd := rand.New(rand.NewSource(5))
	b := panel.NewBuilder([]string{"rank_me", "rank_bm"})
	for m := 0; m < 24; m++ {
		month := fmt.Sprintf("2010-%02d", m)
		me, bm := rnd.Perm(30), rnd.Perm(30)
		for a := 0; a < 30; a++ {
			x := []float64{(float64(me[a]) + 0.5) / 30, (float64(bm[a]) + 0.5) / 30}
			ret := 0.01 + 0.01*rnd.NormFloat64()
			if x[0] > 0.5 {
				ret += 0.02
			}
			require.NoError(t, b.Add(month, panel.Observation{
				Asset:           fmt.Sprintf("s%d", a),
				Return:          ret,
				Weight:          1 + rnd.Float64(),
				LossWeight:      1,
				Characteristics: x,
			}))
		}
	}
	p, err := b.Panel()
	require.NoError(t, err)
	cfg := ptree.DefaultConfig()
	cfg.MinLeafSize = 5
	cfg.MaxDepth = 2
	cfg.NumBoostingRounds = 2
	m, err := ptree.Fit(context.Background(), p, cfg)
	require.NoError(t, err)
	m.ID = NewID()
	return m
}

func TestCodecsRoundTrip(t *testing.T) {
	m := fitModel(t)
	for name, codec := range map[string]Codec{"json": JSON, "msgpack": Msgpack} {
		data, err := codec.Encode(m)
		require.NoError(t, err, name)
		decoded, err := codec.Decode(data)
		require.NoError(t, err, name)
		assert.Equal(t, m, decoded, name)
	}
	_, err := JSON.Decode([]byte("{"))
	assert.Error(t, err)
	_, err = Msgpack.Decode([]byte{0xc1})
	assert.Error(t, err)
}

func TestFiles(t *testing.T) {
	m := fitModel(t)
	dir := t.TempDir()
	assert.Equal(t, Msgpack, CodecFor("model.msgpack"))
	assert.Equal(t, JSON, CodecFor("model.json"))
	for _, name := range []string{"model.json", "model.mp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, m))
		read, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, m, read)
	}
	_, err := ReadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestMemoryKeepsFittedModelsApart(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(Msgpack)
	defer s.Close(ctx)
	m := fitModel(t)
	require.NoError(t, s.Create(ctx, m))
	want := m.Rounds[0].Factor[0]

	m.Rounds[0].Factor[0] = want + 1
	m.Rounds[0].LeafWeights = nil
	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got.Rounds[0].Factor[0])
	assert.NotEmpty(t, got.Rounds[0].LeafWeights)
	assert.NoError(t, got.Validate())
}
