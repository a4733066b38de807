package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tcserver/tcconfig/settings"
)

func newShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.coordinator()
			if err != nil {
				return err
			}
			s, warnings, err := c.Load()
			if err != nil {
				return err
			}
			if n := warnings.Len(); n > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("%d warnings while reading the instance", n))
			}
			out, err := settings.DumpYAML(s)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newPropertiesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "properties",
		Short: "Print the property set used to resolve ${...} placeholders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.coordinator()
			if err != nil {
				return err
			}
			props, err := c.Properties()
			if err != nil {
				return err
			}
			out, err := settings.DumpProperties(props)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
