// Package cli implements the vibecheck command line: the HTTP server and the
// offline maintenance commands that share its configuration.
package cli

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/vibe-check/internal/config"
	"github.com/tbourn/vibe-check/internal/observability"
)

// env is what PersistentPreRunE hands to every subcommand.
type env struct {
	version string
	cfg     config.Config
	log     zerolog.Logger
	closer  io.Closer
	out     io.Writer
}

// Root builds the vibecheck command tree.
func Root(version string) *cobra.Command {
	e := &env{version: version, out: os.Stdout}
	var configFile string

	root := &cobra.Command{
		Use:     "vibecheck",
		Short:   "Slack check-ins for agency clients",
		Version: version,
		Long: `vibecheck runs the Vibe Check Slack app: scheduled standup and weekly
feedback prompts sent to clients by DM, answered in-thread with buttons,
and summarized on a small dashboard.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log, e.closer = observability.SetupLogging(observability.LogOptions{
				Level:  cfg.LogLevel,
				Pretty: cfg.LogPretty,
				File:   cfg.LogFile,
			})
			e.out = cmd.OutOrStdout()
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e.closer != nil {
				return e.closer.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML file of KEY: value settings (same as CONFIG_FILE)")

	root.AddCommand(serveCmd(e))
	root.AddCommand(migrateCmd(e))
	root.AddCommand(jobsCmd(e))
	root.AddCommand(purgeCmd(e))
	root.AddCommand(genkeyCmd())
	return root
}
