// Package command wires the CLI: every subcommand loads configuration through
// one viper instance and talks to Discord through bot.
package command

import (
	"context"

	"discleanse/bot"
	"discleanse/config"
	"discleanse/database"
	"discleanse/models"
	"discleanse/utils"
	"discleanse/wipe"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is state shared by the subcommands of one invocation.
type app struct {
	v          *viper.Viper
	configPath string
}

// NewRootCmd builds the command tree. Running it without a subcommand wipes.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "discleanse",
		Short: "Delete every message, thread and text channel of a Discord guild",
		Long: `discleanse empties a guild the bot can manage. Recent messages go through
bulk deletes first, old ones are deleted one at a time, and each text channel
is removed once it is empty. A failed run can simply be started again.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runWipe,
	}
	definePersistentFlags(root, a)
	for _, sub := range subcommands(a) {
		root.AddCommand(sub)
	}
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// setup reads .env, the config file and the environment, then configures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.Read(a.v, a.configPath); err != nil {
		return err
	}
	return utils.InitLogger(cmd.ErrOrStderr(), a.v.GetString("log.level"))
}

func (a *app) config() (*models.Config, error) {
	return config.FromViper(a.v)
}

// newBot builds a bot that reports to the console and, when configured, the
// audit log. The returned func releases the audit database.
func (a *app) newBot(cmd *cobra.Command, cfg *models.Config) (*bot.Bot, func(), error) {
	observers := []wipe.Observer{utils.NewConsole(cmd.OutOrStdout())}
	closeFn := func() {}
	if cfg.Audit.DBPath != "" {
		audit, err := database.OpenAuditLog(cfg.Audit.DBPath)
		if err != nil {
			return nil, nil, err
		}
		observers = append(observers, audit)
		closeFn = func() { audit.Close() }
	}
	b, err := bot.NewBot(cfg, observers...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return b, closeFn, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return bot.SignalContext(cmd.Context())
}
