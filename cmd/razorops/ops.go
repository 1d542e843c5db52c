package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/justyntemme/razorops/internal/app"
	"github.com/justyntemme/razorops/internal/fileops"
	"github.com/spf13/cobra"
)

// action starts one operation on an open session.
type action func(ctx context.Context, s *session) (*fileops.Task, error)

// runAction opens a session, starts the task and follows its progress until
// it finishes. Ctrl-C cancels the task.
func (o *rootOptions) runAction(cmd *cobra.Command, quiet bool, do action) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := o.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.stop()

	task, err := do(ctx, s)
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}
	return follow(ctx, task, cmd.ErrOrStderr(), quiet)
}

// follow prints progress for task until it is done.
func follow(ctx context.Context, task *fileops.Task, w io.Writer, quiet bool) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-task.Done():
			return report(task, w, quiet)
		case <-ticker.C:
			if !quiet {
				fmt.Fprintf(w, "\r%s: %s", task.Label, task.Progress())
			}
		case <-ctx.Done():
			// The task sees the same context; wait for it to wind down
			<-task.Done()
			return report(task, w, quiet)
		}
	}
}

func report(task *fileops.Task, w io.Writer, quiet bool) error {
	snap := task.Progress()
	elapsed := task.FinishedAt().Sub(task.StartedAt())
	err := task.Err()

	if !quiet {
		fmt.Fprintf(w, "\r%s: %s\n", task.Label, snap)
	}
	if err == nil {
		if !quiet {
			fmt.Fprintf(w, "done in %s (%s)\n", elapsed.Round(time.Millisecond), humanize.Bytes(uint64(max(snap.Transferred, 0))))
		}
		return nil
	}

	errs := task.Errors()
	if len(errs) > 1 {
		for _, e := range errs {
			fmt.Fprintf(w, "  %v\n", e)
		}
		return fmt.Errorf("%s: %d entries failed", task.Kind, len(errs))
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: cancelled", task.Kind)
	}
	return err
}

type transferFlags struct {
	quiet bool
}

func (f *transferFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "don't print progress")
}

// NewCopyCmd copies sources into a directory, like a paste after copy.
func NewCopyCmd(opts *rootOptions) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:   "copy SOURCE... DIRECTORY",
		Short: "Copy files and directories into a directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAction(cmd, f.quiet, paste(app.ClipCopy, args))
		},
	}
	f.bind(cmd)
	return cmd
}

// NewCutCmd copies sources into a directory, then deletes the sources.
func NewCutCmd(opts *rootOptions) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:   "cut SOURCE... DIRECTORY",
		Short: "Copy into a directory, then delete the sources",
		Long: `Cut copies every source into DIRECTORY and deletes a source only after
its whole tree arrived. Sources with skipped or failed entries are kept.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAction(cmd, f.quiet, paste(app.ClipCut, args))
		},
	}
	f.bind(cmd)
	return cmd
}

func paste(op app.ClipOp, args []string) action {
	sources, dir := args[:len(args)-1], args[len(args)-1]
	return func(ctx context.Context, s *session) (*fileops.Task, error) {
		s.SetClipboard(op, sources)
		s.Navigate(dir)
		return s.Paste(ctx)
	}
}

// NewMoveCmd relocates sources into a directory with renames.
func NewMoveCmd(opts *rootOptions) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:     "move SOURCE... DIRECTORY",
		Aliases: []string{"mv"},
		Short:   "Move files and directories into a directory",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, dir := args[:len(args)-1], args[len(args)-1]
			return opts.runAction(cmd, f.quiet, func(ctx context.Context, s *session) (*fileops.Task, error) {
				return s.MoveTo(ctx, sources, dir)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

// NewRmCmd permanently deletes paths.
func NewRmCmd(opts *rootOptions) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Permanently delete files and directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAction(cmd, f.quiet, func(ctx context.Context, s *session) (*fileops.Task, error) {
				return s.Delete(ctx, args)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

// NewDupCmd copies each path next to itself.
func NewDupCmd(opts *rootOptions) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:     "dup PATH...",
		Aliases: []string{"duplicate"},
		Short:   `Duplicate files as "name (copy N).ext" in the same directory`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAction(cmd, f.quiet, func(ctx context.Context, s *session) (*fileops.Task, error) {
				return s.Duplicate(ctx, args)
			})
		},
	}
	f.bind(cmd)
	return cmd
}
