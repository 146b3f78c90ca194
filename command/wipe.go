package command

import (
	"github.com/spf13/cobra"
)

func (a *app) newWipeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wipe",
		Short: "Wipe the guild (default)",
		Args:  cobra.NoArgs,
		RunE:  a.runWipe,
	}
}

func (a *app) runWipe(cmd *cobra.Command, _ []string) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	b, closeFn, err := a.newBot(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	_, err = b.Wipe(ctx)
	return err
}
