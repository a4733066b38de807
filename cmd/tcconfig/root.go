package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tcserver/tcconfig/config"
	"github.com/tcserver/tcconfig/logging"
	"github.com/tcserver/tcconfig/reconcile"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logOut     io.Writer
}

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of package variables.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "tcconfig",
		Short: "Reconcile Tomcat instance configuration files",
		Long: `tcconfig reads server.xml, web.xml, context.xml and the environment file
of a Tomcat instance into one settings model, and writes a desired model back
while preserving comments, unknown elements and ${...} placeholders.
Every write is preceded by a timestamped backup under <instance>/backup.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.logOut = cmd.ErrOrStderr()
			logging.InitForCLI(level, opts.logOut)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultFileName, "tool configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides logLevel of the config file")

	root.AddCommand(
		newShowCmd(opts),
		newApplyCmd(opts),
		newPatchCmd(opts),
		newBackupCmd(opts),
		newRestoreCmd(opts),
		newBackupsCmd(opts),
		newFileCmd(opts),
		newPropertiesCmd(opts),
	)
	return root
}

// coordinator loads the tool configuration and builds a Coordinator.
func (o *globalOptions) coordinator() (*reconcile.Coordinator, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel == "" && o.logOut != nil {
		if level, err := logging.ParseLevel(cfg.LogLevel); err == nil {
			logging.InitForCLI(level, o.logOut)
		}
	}
	c, err := reconcile.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.configPath, err)
	}
	return c, nil
}
