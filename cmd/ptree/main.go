package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// StoreEnv names the environment variable with the default model store URL.
const StoreEnv = "PTREE_STORE"

type rootCmdConfig struct {
	verbose   bool
	logFormat string
	storeURL  string
	ctx       context.Context
}

func main() {
	_ = godotenv.Load()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cliParser(ctx).Execute()
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func cliParser(ctx context.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ptree",
		Short: "ptree is a tool to build panel tree factors",
		Long:  `A tool to grow panel trees on asset panels, boost them into factors, and evaluate those factors out of sample`,
	}
	config := &rootCmdConfig{ctx: ctx}
	rootCmd.PersistentFlags().BoolVarP(&(config.verbose), "verbose", "v", false, "log the splits and leaves of every tree")
	rootCmd.PersistentFlags().StringVar(&(config.logFormat), "log-format", "console", "format of the log written to STDERR: console or json")
	rootCmd.PersistentFlags().StringVar(&(config.storeURL), "store", os.Getenv(StoreEnv), "URL of the model store (redis://... or mongodb://...) to save models to and load them from instead of files (defaults to $"+StoreEnv+")")
	rootCmd.AddCommand(versionCmd(), growCmd(config), predictCmd(config), treeCmd(config), reportCmd(config))
	return rootCmd
}

// Context returns the command context with the logger attached.
func (rcc *rootCmdConfig) Context() context.Context {
	ctx := rcc.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(os.Stderr, rcc.verbose, rcc.logFormat)
	return log.WithContext(ctx)
}
