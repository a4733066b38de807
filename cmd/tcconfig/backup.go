package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newBackupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [pattern...]",
		Short: "Back up the managed files, plus files matching the patterns",
		Long: `backup copies every managed file into a new timestamped set under
<instance>/backup. Patterns use doublestar syntax relative to the instance
directory, for example "conf/**/*.xml".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.coordinator()
			if err != nil {
				return err
			}
			set, saved, err := c.Snapshot(args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up %d files to %s\n", len(saved), set.Dir)
			return nil
		},
	}
}

func newRestoreCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore the most recent backup set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.coordinator()
			if err != nil {
				return err
			}
			name, err := c.Restore()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored backup %s\n", name)
			return nil
		},
	}
}

func newBackupsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List backup sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.coordinator()
			if err != nil {
				return err
			}
			sets, err := c.Backups()
			if err != nil {
				return err
			}
			if len(sets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFILES\tSIZE\tAGE")
			for _, s := range sets {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Name, s.Files, humanize.Bytes(uint64(s.Bytes)), humanize.Time(s.Time))
			}
			return tw.Flush()
		},
	}
}
