package command

import (
	"github.com/spf13/cobra"
)

func (a *app) newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Wipe the guild on a cron schedule until interrupted",
		Long: `schedule runs a wipe on every tick of schedule.cron (standard five
fields or a descriptor such as "@daily"). A tick is skipped while the previous
wipe is still running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			return b.Schedule(ctx, cfg.Schedule.Cron)
		},
	}
	cmd.Flags().String("cron", "", "cron spec (overrides schedule.cron)")
	_ = a.v.BindPFlag("schedule.cron", cmd.Flags().Lookup("cron"))
	return cmd
}
