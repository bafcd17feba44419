package main

import (
	"fmt"
	"math"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pbanos/ptree"
	"github.com/pbanos/ptree/portfolio"
)

type reportCmdConfig struct {
	*rootCmdConfig
	panelInput
	modelInput  string
	outOfSample bool
}

/*
reportRow holds the statistics of a boosting round: the annualized Sharpe
ratio of its factor, the annualized Sharpe ratio of the mean-variance
efficient combination of the factors up to it and the largest absolute
correlation of its factor with the previous ones.
*/
type reportRow struct {
	round, leaves, depth int
	sharpe, mveSharpe    float64
	maxCorrelation       float64
}

func reportCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &reportCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report the performance of the factors of a model",
		Long:  `Report the Sharpe ratios of the factors of a model, in sample or on a panel, and how correlated every factor is with the previous ones`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			ctx := config.Context()
			m, err := loadModel(ctx, config.modelInput, config.storeURL)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			factors := m.Factors()
			if config.outOfSample {
				p, err := config.panel(ctx)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(3)
				}
				prediction, err := ptree.Predict(ctx, m, p)
				if err != nil {
					fmt.Fprintf(os.Stderr, "predicting factors: %v\n", err)
					os.Exit(4)
				}
				factors = prediction.Factors
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Round", "Leaves", "Depth", "Sharpe", "MVE Sharpe", "Max |Corr|"})
			for _, r := range report(m, factors) {
				t.AppendRow(table.Row{
					r.round,
					r.leaves,
					r.depth,
					fmt.Sprintf("%.3f", r.sharpe),
					fmt.Sprintf("%.3f", r.mveSharpe),
					fmt.Sprintf("%.3f", r.maxCorrelation),
				})
			}
			t.Render()
		},
	}
	config.panelInput.addFlags(cmd, "to evaluate the factors on, with --out-of-sample")
	cmd.Flags().StringVarP(&(config.modelInput), "model", "m", "", "path to a file from which the model will be read, or its ID on the store when --store is set (required)")
	cmd.Flags().BoolVar(&(config.outOfSample), "out-of-sample", false, "evaluate the factors of the model on the input panel instead of the ones fitted")
	return cmd
}

func (rcc *reportCmdConfig) Validate() error {
	if rcc.modelInput == "" {
		return fmt.Errorf("required model flag was not set")
	}
	return nil
}

/*
report takes a model and the factors of its rounds and returns the
statistics of each round. The MVE Sharpe ratio is NaN if the factors cannot be combined.
*/
func report(m *ptree.Model, factors [][]float64) []reportRow {
	rows := make([]reportRow, len(m.Rounds))
	for i, r := range m.Rounds {
		mve, err := portfolio.MVESharpe(factors[:i+1], m.Config.LambdaCov, m.Config.LambdaMean)
		if err != nil {
			mve = math.NaN()
		}
		rows[i] = reportRow{
			round:          r.Index,
			leaves:         r.Tree.NumLeaves(),
			depth:          r.Tree.Depth(),
			sharpe:         portfolio.Sharpe(factors[i]),
			mveSharpe:      mve,
			maxCorrelation: portfolio.MaxAbsCorrelation(factors[i], factors[:i]),
		}
	}
	return rows
}
