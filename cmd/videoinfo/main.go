package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/video-transcript/internal/app"
	"github.com/codebuildervaibhav/video-transcript/internal/config"
	"github.com/codebuildervaibhav/video-transcript/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "videoinfo",
		Short:        "Fetch video metadata and a transcript",
		SilenceUsage: true,
	}
	root.AddCommand(newGetCmd())
	return root
}

func newGetCmd() *cobra.Command {
	var (
		configPath string
		policy     string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "get <video_id>",
		Short: "Print the info of one video as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if policy != "" {
				cfg.Fallback.Policy = policy
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Logs go to stderr so stdout holds only the result.
			log := logging.NewWithWriter(os.Stderr, cfg.Log.Level, "console")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			components, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer components.Close()

			info, err := components.Service.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("video %s: %w", args[0], err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")
	cmd.Flags().StringVar(&policy, "policy", "", "fallback policy override (degrade or strict)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level override")
	return cmd
}
