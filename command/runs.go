package command

import (
	"fmt"
	"text/tabwriter"

	"discleanse/config"
	"discleanse/database"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs recorded in the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.v.GetString("audit.db_path")
			if path == "" {
				return &config.ConfigError{Key: "audit.db_path", Reason: "set --audit-db or AUDIT_DB_PATH"}
			}
			audit, err := database.OpenAuditLog(path)
			if err != nil {
				return err
			}
			defer audit.Close()

			runs, err := audit.ListRuns(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tGUILD\tSTARTED\tSTATUS\tMESSAGES\tCHANNELS\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.GuildName, humanize.Time(r.StartedAt),
					r.Status, humanize.Comma(int64(r.Messages())), r.ChannelsDeleted, r.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
