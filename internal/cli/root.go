// Package cli implements the detectctl command line client.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"yolodetect/internal/client"
	"yolodetect/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

type rootOptions struct {
	apiURL  string
	timeout time.Duration
	outDir  string

	api *client.Client
}

// NewRootCommand builds the detectctl command tree with defaults from cfg.
func NewRootCommand(cfg *config.ClientConfig) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "detectctl",
		Short:         "Command line client for the object detection server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.api = client.New(opts.apiURL, opts.timeout)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().StringVar(&opts.apiURL, "api", cfg.APIURL, "detection server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Duration(cfg.TimeoutSeconds)*time.Second, "per-request timeout")

	root.AddCommand(newPredictCommand(opts, cfg.OutputDir))
	root.AddCommand(newHealthCommand(opts))
	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(config.LoadClient()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
