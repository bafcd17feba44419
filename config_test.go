package ptree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(c *Config){
		"min leaf size": func(c *Config) { c.MinLeafSize = 0 },
		"max depth":     func(c *Config) { c.MaxDepth = -1 },
		"cutpoints":     func(c *Config) { c.NumCutpoints = 0 },
		"rounds":        func(c *Config) { c.NumBoostingRounds = 0 },
		"lambda cov":    func(c *Config) { c.LambdaCov = -1e-5 },
		"workers":       func(c *Config) { c.Workers = -2 },
		"first split":   func(c *Config) { c.FirstSplit = []string{"rank_me", ""} },
		"second split":  func(c *Config) { c.SecondSplit = []string{""} },
	}
	for name, mutate := range cases {
		c := DefaultConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}

	c := DefaultConfig()
	c.MaxDepth = 0
	c.LambdaCov = 0
	c.LambdaMean = -0.01
	c.FirstSplit = []string{"rank_me"}
	assert.NoError(t, c.Validate())
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
min_leaf_size: 5
max_depth: 2
first_split: [rank_me]
equal_weight: true
`), 0o600))
	c, err := ReadConfigFile(path)
	require.NoError(t, err)
	expected := DefaultConfig()
	expected.MinLeafSize = 5
	expected.MaxDepth = 2
	expected.FirstSplit = []string{"rank_me"}
	expected.EqualWeight = true
	assert.Equal(t, expected, c)

	require.NoError(t, os.WriteFile(path, []byte("min_leaf_size: 0\n"), 0o600))
	_, err = ReadConfigFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("min_leaf: 3\n"), 0o600))
	_, err = ReadConfigFile(path)
	assert.Error(t, err)

	_, err = ReadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
