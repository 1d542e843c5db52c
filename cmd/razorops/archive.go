package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/justyntemme/razorops/internal/archive"
	"github.com/justyntemme/razorops/internal/fileops"
	"github.com/spf13/cobra"
)

// NewCompressCmd writes sources into an archive container.
func NewCompressCmd(opts *rootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "compress CONTAINER SOURCE...",
		Short: "Write files and directories into a zip, tar, tar.gz or tar.zst archive",
		Long: `Compress writes every source into CONTAINER. The format comes from --kind,
then from CONTAINER's extension, then from archive.defaultKind in the config.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var k archive.Kind
			if kind != "" {
				parsed, err := archive.ParseKind(kind)
				if err != nil {
					return err
				}
				k = parsed
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			s, err := opts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.stop()

			if err := s.Compress(ctx, args[1:], args[0], k); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "archive format: zip, tar, tar.gz or tar.zst")
	return cmd
}

// NewExtractCmd unpacks a container next to itself.
func NewExtractCmd(opts *rootOptions) *cobra.Command {
	var (
		f     transferFlags
		purge bool
	)
	cmd := &cobra.Command{
		Use:   "extract CONTAINER",
		Short: "Extract an archive into a directory named after it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("delete") {
				opts.cfg.Archive.DeleteAfterExtract = purge
			}
			return opts.runAction(cmd, f.quiet, func(ctx context.Context, s *session) (*fileops.Task, error) {
				dest, task, err := s.Extract(ctx, args[0])
				if err != nil {
					return nil, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "extracted into %s\n", dest)
				return task, nil
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&purge, "delete", false, "delete the archive after a successful extraction (overrides the config)")
	return cmd
}
