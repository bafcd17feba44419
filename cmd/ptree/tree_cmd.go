package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type treeCmdConfig struct {
	*rootCmdConfig
	modelInput string
}

func treeCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &treeCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the trees of a model",
		Long:  `Show the splits and leaves of every boosting round of a model along with the weights of its leaves`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			m, err := loadModel(config.Context(), config.modelInput, config.storeURL)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			w := cmd.OutOrStdout()
			for _, r := range m.Rounds {
				fmt.Fprintf(w, "Round %d: %d leaves, depth %d\n", r.Index, r.Tree.NumLeaves(), r.Tree.Depth())
				fmt.Fprintln(w, r.Tree)
				fmt.Fprintf(w, "Leaf weights: %v\n\n", r.LeafWeights)
			}
		},
	}
	cmd.Flags().StringVarP(&(config.modelInput), "model", "m", "", "path to a file from which the model will be read, or its ID on the store when --store is set (required)")
	return cmd
}

func (tcc *treeCmdConfig) Validate() error {
	if tcc.modelInput == "" {
		return fmt.Errorf("required model flag was not set")
	}
	return nil
}
