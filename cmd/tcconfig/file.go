package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tcserver/tcconfig/backup"
	"github.com/tcserver/tcconfig/transfer"
)

func newFileCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Transfer instance files as base64",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get NAME",
		Short: "Print a file of the instance directory as base64",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.coordinator()
			if err != nil {
				return err
			}
			content, err := transfer.Get(c.Config().InstanceDir, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		},
	}, &cobra.Command{
		Use:   "put NAME",
		Short: "Replace a file of the instance directory with base64 read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.coordinator()
			if err != nil {
				return err
			}
			content, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			root := c.Config().InstanceDir
			set := backup.New(root, nil).Begin()
			if err := transfer.Put(root, args[0], string(content), set); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	return cmd
}
