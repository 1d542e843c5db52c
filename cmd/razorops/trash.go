package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/justyntemme/razorops/internal/fileops"
	"github.com/justyntemme/razorops/internal/trash"
	"github.com/spf13/cobra"
)

// NewTrashCmd moves paths to the trash, or lists or empties it.
func NewTrashCmd(opts *rootOptions) *cobra.Command {
	var (
		f     transferFlags
		list  bool
		empty bool
	)
	cmd := &cobra.Command{
		Use:   "trash [PATH...]",
		Short: "Move files to the trash, or list or empty it",
		RunE: func(cmd *cobra.Command, args []string) error {
			bin := trash.New(opts.cfg.Trash.Path)
			switch {
			case list:
				return listTrash(cmd, bin)
			case empty:
				if err := bin.Empty(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "emptied %s\n", bin.Root())
				return nil
			case len(args) == 0:
				return fmt.Errorf("nothing to move to the %s", trash.DisplayName())
			}
			return opts.runAction(cmd, f.quiet, func(ctx context.Context, s *session) (*fileops.Task, error) {
				return s.Trash(ctx, args)
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&list, "list", false, "list the trash contents")
	cmd.Flags().BoolVar(&empty, "empty", false, "permanently delete everything in the trash")
	cmd.MarkFlagsMutuallyExclusive("list", "empty")
	return cmd
}

func listTrash(cmd *cobra.Command, bin *trash.Bin) error {
	items, err := bin.List()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is empty\n", trash.DisplayName())
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tDELETED\tORIGINAL PATH")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Name, humanize.Bytes(uint64(max(it.Size, 0))), humanize.Time(it.DeletedAt), it.OriginalPath)
	}
	return tw.Flush()
}
