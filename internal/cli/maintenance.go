package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tbourn/vibe-check/internal/scheduler"
	"github.com/tbourn/vibe-check/internal/tokenstore"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	kindTint = map[string]*color.Color{
		scheduler.KindStandup:  color.New(color.FgCyan),
		scheduler.KindFeedback: color.New(color.FgMagenta),
		scheduler.KindSystem:   color.New(color.FgYellow),
	}
)

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			db, err := openDB(e.cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			fmt.Fprintf(e.out, "%s schema up to date (%s)\n", okMark, db.Dialector.Name())
			return nil
		},
	}
}

func jobsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the jobs the scheduler would run, with next fire times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(e.cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			c, err := wire(e.cfg, db, e.log)
			if err != nil {
				return err
			}
			if err := c.scheduleAll(cmd.Context(), e.cfg); err != nil {
				return err
			}
			printJobs(e.out, c.sched.Jobs())
			return nil
		},
	}
}

func printJobs(w io.Writer, jobs []scheduler.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("no jobs scheduled"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSPEC\tNEXT RUN (UTC)")
	for _, j := range jobs {
		kind := j.Kind
		if tint, ok := kindTint[kind]; ok {
			kind = tint.Sprint(kind)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.ID, kind, j.Spec, j.NextRun.UTC().Format(time.DateTime))
	}
	tw.Flush()
}

func purgeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete responses older than DATA_RETENTION_DAYS now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(e.cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			c, err := wire(e.cfg, db, e.log)
			if err != nil {
				return err
			}
			res, err := c.retention.Purge(e.log.WithContext(cmd.Context()))
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s removed %d standups, %d feedback responses, %d prompt sends\n",
				okMark, res.Standups, res.Feedback, res.PromptSends)
			return nil
		},
	}
}

func genkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Print a new ENCRYPTION_KEY",
		Long: `Print a fresh Fernet key for ENCRYPTION_KEY. To rotate, prepend the new
key to the existing value (comma separated); tokens encrypted with older
keys stay readable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := tokenstore.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k)
			return nil
		},
	}
}
