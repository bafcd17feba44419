package ptree

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

/*
Config holds the parameters of a fit. It is passed by value to every
operation that needs it and never modified by them.
*/
type Config struct {
	// MinLeafSize is the minimum number of assets each side of a split must
	// have in every month for the split to be feasible.
	MinLeafSize int `yaml:"min_leaf_size" json:"minLeafSize" validate:"min=1"`
	// MaxDepth bounds the depth of the trees, 0 being a single leaf.
	MaxDepth int `yaml:"max_depth" json:"maxDepth" validate:"min=0"`
	// NumCutpoints is the number of quantiles of each characteristic tried
	// as thresholds on every node.
	NumCutpoints int `yaml:"num_cutpoints" json:"numCutpoints" validate:"min=1"`
	// NumBoostingRounds is the number of trees, and factors, to grow.
	NumBoostingRounds int     `yaml:"num_boosting_rounds" json:"numBoostingRounds" validate:"min=1"`
	LambdaMean        float64 `yaml:"lambda_mean" json:"lambdaMean"`
	LambdaCov         float64 `yaml:"lambda_cov" json:"lambdaCov" validate:"gte=0"`
	// FirstSplit and SecondSplit name the characteristics the root and the
	// deeper nodes may split on. Empty means all of them.
	FirstSplit  []string `yaml:"first_split" json:"firstSplit,omitempty" validate:"dive,required"`
	SecondSplit []string `yaml:"second_split" json:"secondSplit,omitempty" validate:"dive,required"`
	// EqualWeight makes leaves and split groups equally weighted instead of
	// weighted by the observations' portfolio weight.
	EqualWeight bool `yaml:"equal_weight" json:"equalWeight"`
	// RandomSplit makes every node consider a single characteristic drawn
	// from its whitelist with a source seeded with Seed.
	RandomSplit bool  `yaml:"random_split" json:"randomSplit"`
	Seed        int64 `yaml:"seed" json:"seed"`
	// Workers is the number of goroutines evaluating split candidates,
	// GOMAXPROCS if 0.
	Workers int `yaml:"workers" json:"workers" validate:"min=0"`
	// MinImprovement is the gain a split must exceed not to be pruned.
	MinImprovement float64 `yaml:"min_improvement" json:"minImprovement"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MinLeafSize:       20,
		MaxDepth:          5,
		NumCutpoints:      4,
		NumBoostingRounds: 3,
		LambdaMean:        0,
		LambdaCov:         1e-5,
	}
}

// Validate returns an error if any field of the config has an invalid value.
func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

/*
ReadConfigFile takes the path to a YAML file and returns the configuration in
it, with the fields it does not set taken from DefaultConfig, or an error if
the file cannot be read or the configuration is invalid.
*/
func ReadConfigFile(path string) (Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return c, nil
}
