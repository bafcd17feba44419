package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pbanos/ptree"
	"github.com/pbanos/ptree/metrics"
	"github.com/pbanos/ptree/portfolio"
)

type growCmdConfig struct {
	*rootCmdConfig
	panelInput
	configInput   string
	output        string
	factorsOutput string
	metricsOutput string
	pruneStrategy string
	overrides     ptree.Config
	firstSplit    []string
	secondSplit   []string
	changed       func(name string) bool
	cfg           ptree.Config
	pruner        ptree.Pruner
}

func growCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &growCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "grow",
		Short: "Grow and boost panel trees on a panel",
		Long:  `Grow a sequence of boosted panel trees on a panel and save the model with their factors.`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			ctx := config.Context()
			log := zerolog.Ctx(ctx)
			cfg := config.cfg
			p, err := config.panel(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
			reg := prometheus.NewRegistry()
			pot, err := ptree.New(cfg, ptree.WithPruner(config.pruner), ptree.WithMetrics(metrics.New(reg)))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			log.Info().
				Int("rounds", cfg.NumBoostingRounds).
				Int("maxDepth", cfg.MaxDepth).
				Int("minLeafSize", cfg.MinLeafSize).
				Msg("Growing panel trees...")
			m, err := pot.Boost(ctx, p)
			if err != nil {
				fmt.Fprintf(os.Stderr, "growing the trees: %v\n", err)
				os.Exit(4)
			}
			if sr, err := portfolio.MVESharpe(m.Factors(), cfg.LambdaCov, cfg.LambdaMean); err == nil {
				log.Info().Float64("sharpe", sr).Msg("Done")
			}
			err = saveModel(ctx, m, config.output, config.storeURL, cmd.OutOrStdout())
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(5)
			}
			if config.factorsOutput != "" {
				err = writeFactors(cmd.OutOrStdout(), config.factorsOutput, m.Months, m.Factors())
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(6)
				}
			}
			if config.metricsOutput != "" {
				err = prometheus.WriteToTextfile(config.metricsOutput, reg)
				if err != nil {
					fmt.Fprintf(os.Stderr, "writing metrics: %v\n", err)
					os.Exit(7)
				}
			}
		},
	}
	config.changed = cmd.Flags().Changed
	config.panelInput.addFlags(cmd, "to grow the trees on")
	defaults := ptree.DefaultConfig()
	cmd.Flags().StringVarP(&(config.configInput), "config", "c", "", "path to a YML file with the configuration of the trees (defaults to the built-in configuration)")
	cmd.Flags().StringVarP(&(config.output), "output", "o", "", "path to a file to which the model will be written, as msgpack for .msgpack and .mp files and JSON otherwise (defaults to STDOUT, ignored with --store)")
	cmd.Flags().StringVar(&(config.factorsOutput), "factors", "", "path to a CSV file to which the in-sample factors will be written")
	cmd.Flags().StringVar(&(config.metricsOutput), "metrics", "", "path to a file to which the fit metrics will be written in the Prometheus text format")
	cmd.Flags().StringVarP(&(config.pruneStrategy), "prune", "p", "default", "pruning strategy to apply, the following are valid: default, minimum-gain:[VALUE], none")
	cmd.Flags().IntVar(&(config.overrides.MinLeafSize), "min-leaf-size", defaults.MinLeafSize, "minimum number of assets on each side of a split every month")
	cmd.Flags().IntVar(&(config.overrides.MaxDepth), "max-depth", defaults.MaxDepth, "maximum depth of the trees")
	cmd.Flags().IntVar(&(config.overrides.NumCutpoints), "cutpoints", defaults.NumCutpoints, "number of quantile cutpoints tried per characteristic")
	cmd.Flags().IntVar(&(config.overrides.NumBoostingRounds), "rounds", defaults.NumBoostingRounds, "number of boosting rounds")
	cmd.Flags().Float64Var(&(config.overrides.LambdaMean), "lambda-mean", defaults.LambdaMean, "shrinkage added to the mean returns")
	cmd.Flags().Float64Var(&(config.overrides.LambdaCov), "lambda-cov", defaults.LambdaCov, "ridge added to the covariance of returns")
	cmd.Flags().StringSliceVar(&(config.firstSplit), "first-split", nil, "characteristics the root may split on (defaults to all)")
	cmd.Flags().StringSliceVar(&(config.secondSplit), "second-split", nil, "characteristics deeper nodes may split on (defaults to all)")
	cmd.Flags().BoolVar(&(config.overrides.EqualWeight), "equal-weight", defaults.EqualWeight, "weight assets equally instead of by their portfolio weight")
	cmd.Flags().BoolVar(&(config.overrides.RandomSplit), "random-split", defaults.RandomSplit, "split every node on a randomly drawn characteristic")
	cmd.Flags().Int64Var(&(config.overrides.Seed), "seed", defaults.Seed, "seed for random splits")
	cmd.Flags().IntVar(&(config.overrides.Workers), "workers", defaults.Workers, "goroutines evaluating split candidates (defaults to 0: one per CPU)")
	return cmd
}

/*
Validate checks the flags of the command and sets the configuration of the
trees, read from the config flag or the built-in one with the values of the
flags set on the command line on top, and their pruner.
*/
func (gcc *growCmdConfig) Validate() error {
	if gcc.output != "" && gcc.storeURL != "" {
		return fmt.Errorf("cannot set both output and store flags at the same time")
	}
	if gcc.start != "" && gcc.end != "" && gcc.start > gcc.end {
		return fmt.Errorf("start month %s is after end month %s", gcc.start, gcc.end)
	}
	cfg := ptree.DefaultConfig()
	if gcc.configInput != "" {
		var err error
		cfg, err = ptree.ReadConfigFile(gcc.configInput)
		if err != nil {
			return err
		}
	}
	o := gcc.overrides
	set := map[string]func(){
		"min-leaf-size": func() { cfg.MinLeafSize = o.MinLeafSize },
		"max-depth":     func() { cfg.MaxDepth = o.MaxDepth },
		"cutpoints":     func() { cfg.NumCutpoints = o.NumCutpoints },
		"rounds":        func() { cfg.NumBoostingRounds = o.NumBoostingRounds },
		"lambda-mean":   func() { cfg.LambdaMean = o.LambdaMean },
		"lambda-cov":    func() { cfg.LambdaCov = o.LambdaCov },
		"first-split":   func() { cfg.FirstSplit = gcc.firstSplit },
		"second-split":  func() { cfg.SecondSplit = gcc.secondSplit },
		"equal-weight":  func() { cfg.EqualWeight = o.EqualWeight },
		"random-split":  func() { cfg.RandomSplit = o.RandomSplit },
		"seed":          func() { cfg.Seed = o.Seed },
		"workers":       func() { cfg.Workers = o.Workers },
	}
	for name, f := range set {
		if gcc.changed != nil && gcc.changed(name) {
			f()
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	pruner, err := pruningStrategy(gcc.pruneStrategy, cfg)
	if err != nil {
		return err
	}
	gcc.cfg, gcc.pruner = cfg, pruner
	return nil
}

func pruningStrategy(ps string, cfg ptree.Config) (ptree.Pruner, error) {
	parsedPS := strings.Split(ps, ":")
	ps = parsedPS[0]
	psParams := parsedPS[1:]
	switch ps {
	case "default":
		return ptree.FixedGainPruner(cfg.MinImprovement), nil
	case "none":
		return ptree.NoPruner(), nil
	case "minimum-gain":
		if len(psParams) == 0 {
			return nil, fmt.Errorf("minimum-gain pruning strategy requires a value")
		}
		minimum, err := strconv.ParseFloat(psParams[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing minimum-gain parameter: %v", err)
		}
		return ptree.FixedGainPruner(minimum), nil
	}
	return nil, fmt.Errorf("unknown pruning strategy %s", ps)
}
