package command

import (
	"discleanse/config"

	"github.com/spf13/cobra"
)

// definePersistentFlags declares the flags every subcommand shares. Each one
// is bound to its configuration key, so a flag given on the command line wins
// over the environment and the config file.
func definePersistentFlags(root *cobra.Command, a *app) {
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./config.yaml)")
	flags.String("guild", "", "target guild id (overrides "+config.KeyGuildID+")")
	flags.String("audit-db", "", "sqlite audit log path; empty disables")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	_ = a.v.BindPFlag(config.KeyGuildID, flags.Lookup("guild"))
	_ = a.v.BindPFlag("audit.db_path", flags.Lookup("audit-db"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
}

// subcommands lists every subcommand of the root.
func subcommands(a *app) []*cobra.Command {
	return []*cobra.Command{
		a.newWipeCmd(),
		a.newEstimateCmd(),
		a.newScheduleCmd(),
		a.newRunsCmd(),
	}
}
