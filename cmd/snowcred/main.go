package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/systmms/snowcred/cmd/snowcred/commands"
	"github.com/systmms/snowcred/internal/config"
	dserrors "github.com/systmms/snowcred/internal/errors"
	"github.com/systmms/snowcred/internal/logging"
	"github.com/systmms/snowcred/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Wipe enclave keys on Ctrl-C as well as on a normal exit.
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := run(); err != nil {
		var exitErr *commands.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		}
		memguard.SafeExit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile  string
		noColor     bool
		debug       bool
		output      string
		metricsFile string
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "snowcred",
		Short: "ServiceNow credential plugin - verify, change and reconcile user passwords",
		Long: `snowcred runs one credential action against a ServiceNow user account and
reports a stable result code to the credential-management host.

The host describes the accounts in an invocation file. Passwords are never
inlined there: they are references to environment variables, files, the OS
keyring, AWS Secrets Manager, SSM Parameter Store, Azure Key Vault or GCP
Secret Manager.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if output != config.OutputText && output != config.OutputJSON {
				return dserrors.ConfigError{
					Field:      "output",
					Value:      output,
					Message:    "unsupported output format",
					Suggestion: "Use --output text or --output json",
				}
			}

			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			// Update config with parsed values
			cfg.Path = configFile
			cfg.Logger = logger
			cfg.Output = output
			cfg.MetricsFile = metricsFile

			metrics.InitMetrics()
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "invocation.yaml", "Invocation file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&output, "output", config.OutputText, "Result format: text or json")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write action metrics to this node-exporter textfile")

	deps := commands.Deps{UserAgent: "snowcred/" + version}

	// Add commands
	rootCmd.AddCommand(
		commands.NewVerifyCommand(cfg, deps),
		commands.NewChangeCommand(cfg, deps),
		commands.NewReconcileCommand(cfg, deps),
		commands.NewPrereconcileCommand(cfg, deps),
		commands.NewDoctorCommand(cfg, deps),
		commands.NewCodesCommand(cfg),
	)

	return rootCmd.ExecuteContext(context.Background())
}
