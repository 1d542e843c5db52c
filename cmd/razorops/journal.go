package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/justyntemme/razorops/internal/store"
	"github.com/spf13/cobra"
)

// NewJournalCmd lists recent operations from the journal.
func NewJournalCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent file operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.cfg.Journal.Enabled {
				return fmt.Errorf("the journal is disabled (journal.enabled in the config)")
			}
			j := store.NewJournal()
			if err := j.Open(opts.cfg.Journal.Path); err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tKIND\tSTATE\tBYTES\tSOURCES\tDESTINATION")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s\t%s\n",
					humanize.Time(r.StartedAt), r.Kind, r.State,
					humanize.Bytes(uint64(max(r.Transferred, 0))), humanize.Bytes(uint64(max(r.Total, 0))),
					strings.Join(r.Sources, ", "), r.Destination)
				if r.Error != "" {
					fmt.Fprintf(tw, "\t\terror: %s\t\t\t\n", r.Error)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of operations to show")
	return cmd
}
