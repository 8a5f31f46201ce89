package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "agentos",
		Short:         "AgentOS backend: agents, teams and quality-gated workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().String("database-url", "", "SQLite path or postgres:// URL")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (json, console)")
	root.PersistentFlags().Bool("mock", false, "use the scripted mock model client")

	// flag errors are nil when the flag exists
	_ = v.BindPFlag("database_url", root.PersistentFlags().Lookup("database-url"))
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log_format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(newServeCmd(v), newKnowledgeCmd(v), newRunCmd(v))
	root.SetErr(os.Stderr)
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, c.UsageString())
	})
	return root
}
