package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tcserver/tcconfig/reconcile"
	"github.com/tcserver/tcconfig/settings"
)

type applyOptions struct {
	file   string
	dryRun bool
	merge  bool
}

func newApplyCmd(opts *globalOptions) *cobra.Command {
	a := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Make the instance match a desired settings file",
		Long: `apply reads a complete desired settings model (the format printed by
"tcconfig show") and reconciles every managed file with it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.coordinator()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(a.file)
			if err != nil {
				return err
			}
			desired, err := settings.LoadYAML(data)
			if err != nil {
				return fmt.Errorf("%s: %w", a.file, err)
			}
			return reconcileTo(cmd, c, desired, a.dryRun)
		},
	}
	cmd.Flags().StringVarP(&a.file, "file", "f", "", "desired settings (YAML)")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "print the changes instead of writing them")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newPatchCmd(opts *globalOptions) *cobra.Command {
	a := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Apply a JSON patch to the current settings",
		Long: `patch loads the current settings, applies an RFC 6902 JSON Patch (or, with
--merge, an RFC 7386 merge patch) and reconciles the instance with the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.coordinator()
			if err != nil {
				return err
			}
			patch, err := os.ReadFile(a.file)
			if err != nil {
				return err
			}
			current, _, err := c.Load()
			if err != nil {
				return err
			}
			apply := settings.ApplyPatch
			if a.merge {
				apply = settings.ApplyMergePatch
			}
			desired, err := apply(current, patch)
			if err != nil {
				return fmt.Errorf("%s: %w", a.file, err)
			}
			return reconcileTo(cmd, c, desired, a.dryRun)
		},
	}
	cmd.Flags().StringVarP(&a.file, "file", "f", "", "patch document (JSON)")
	cmd.Flags().BoolVar(&a.merge, "merge", false, "treat the file as a JSON merge patch")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "print the changes instead of writing them")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// reconcileTo saves desired, or prints the pending diffs in dry-run mode.
func reconcileTo(cmd *cobra.Command, c *reconcile.Coordinator, desired *settings.Settings, dryRun bool) error {
	if dryRun {
		diffs, err := c.Plan(desired)
		if err != nil {
			return err
		}
		if len(diffs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes")
			return nil
		}
		for _, d := range diffs {
			printDiff(cmd.OutOrStdout(), d.Diff)
		}
		return nil
	}

	res, err := c.Save(desired)
	if res != nil {
		for _, f := range res.Written {
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("wrote %s", f))
		}
		if len(res.Written) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "previous versions saved in %s\n", res.BackupDir)
		} else if err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes")
		}
	}
	return err
}
