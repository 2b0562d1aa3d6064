package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/llamadoc-voice/internal/config"
	applog "github.com/teslashibe/llamadoc-voice/internal/log"
)

var (
	configPath string
	logLevel   string
	documentID string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "llamadoc-voice",
	Short:         "Voice interaction for LlamaDoc documents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.LogLevel = logLevel
		}
		applog.Init(c.LogLevel)
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "llamadoc-voice.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, uploadCmd, askCmd, listenCmd, historyCmd, downloadCmd, settingsCmd)
}

// Execute runs the root command with SIGINT/SIGTERM cancellation.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

// addDocumentFlag registers --doc on cmd.
func addDocumentFlag(cmd *cobra.Command, required bool) {
	cmd.Flags().StringVarP(&documentID, "doc", "d", "", "upload id of the document")
	if required {
		cmd.MarkFlagRequired("doc")
	}
}
