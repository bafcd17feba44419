package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pbanos/ptree"
)

type predictCmdConfig struct {
	*rootCmdConfig
	panelInput
	modelInput string
	output     string
}

func predictCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &predictCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Compute the factors of a model on a panel",
		Long:  `Route the observations of a panel through the trees of a model and combine their leaves with the fitted weights to obtain the model's factors on the panel`,
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
			log := zerolog.Ctx(ctx)
			for i, n := range prediction.EmptyLeaves {
				if n > 0 {
					log.Warn().Int("round", i+1).Int("emptyLeaves", n).Msg("Leaves without observations contributed 0 to the factor")
				}
			}
			err = writeFactors(cmd.OutOrStdout(), config.output, prediction.Months, prediction.Factors)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(5)
			}
		},
	}
	config.panelInput.addFlags(cmd, "to compute the factors on")
	cmd.Flags().StringVarP(&(config.modelInput), "model", "m", "", "path to a file from which the model will be read, or its ID on the store when --store is set (required)")
	cmd.Flags().StringVarP(&(config.output), "output", "o", "", "path to a CSV file to which the factors will be written (defaults to STDOUT)")
	return cmd
}

func (pcc *predictCmdConfig) Validate() error {
	if pcc.modelInput == "" {
		return fmt.Errorf("required model flag was not set")
	}
	return nil
}
