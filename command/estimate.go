package command

import (
	"fmt"
	"io"
	"text/tabwriter"

	"discleanse/bot"
	"discleanse/discord"
	"discleanse/models"
	"discleanse/utils"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) newEstimateCmd() *cobra.Command {
	var quick bool
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Report what a wipe would delete, without deleting anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			b, err := bot.NewBot(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			report, err := b.Estimate(ctx, quick)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&quick, "quick", false, "sample only the newest page of each container")
	return cmd
}

func printReport(out io.Writer, r *bot.Report) {
	fmt.Fprintf(out, "Guild: %s (%s)\n", r.Tree.GuildName, r.Tree.GuildID)
	fmt.Fprintf(out, "%d text-based channels, %d threads\n\n", len(r.Tree.Channels), len(r.Tree.Threads))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if r.Samples != nil {
		fmt.Fprintln(w, "CONTAINER\tKIND\tEST. MESSAGES")
		for _, c := range append(append([]models.Container(nil), r.Tree.Threads...), r.Tree.Channels...) {
			n := fmt.Sprint(r.Samples[c.ID])
			if r.Samples[c.ID] >= discord.MessagePageSize {
				n = "100+"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Kind, n)
		}
		w.Flush()
		return
	}

	fmt.Fprintln(w, "CONTAINER\tKIND\tRECENT\tOLD\tBULK CALLS\tSINGLE CALLS")
	recent, old := 0, 0
	for _, e := range r.Entries {
		recent += e.Recent
		old += e.Old
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n", e.Container.Name, e.Container.Kind,
			humanize.Comma(int64(e.Recent)), humanize.Comma(int64(e.Old)),
			e.BulkCalls(discord.BulkMax), e.IndividualCalls(discord.BulkMax))
	}
	w.Flush()
	fmt.Fprintf(out, "\nTotal: %s recent, %s old messages; %d bulk calls, %d single deletes\n",
		humanize.Comma(int64(recent)), humanize.Comma(int64(old)), r.BulkCalls(), r.IndividualCalls())
	fmt.Fprintf(out, "Projected time: %s\n", utils.FormatDuration(r.ETA))
}
