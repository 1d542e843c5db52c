package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/justyntemme/razorops/internal/app"
	"github.com/justyntemme/razorops/internal/config"
	"github.com/justyntemme/razorops/internal/debug"
	"github.com/justyntemme/razorops/internal/fileops"
	"github.com/justyntemme/razorops/internal/metrics"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags and the configuration they produce.
type rootOptions struct {
	cfgFile    string
	debug      bool
	policy     string
	onConflict string
	metrics    bool

	cfg config.Config
	in  io.Reader
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{in: os.Stdin}

	rootCmd := &cobra.Command{
		Use:          "razorops",
		Short:        "Copy, move, delete and archive file trees with conflict prompts",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.metrics {
				return metrics.WriteText(cmd.ErrOrStderr())
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.config/razor/ops.json)")
	flags.BoolVar(&opts.debug, "debug", false, "enable every debug category at debug level")
	flags.StringVar(&opts.policy, "policy", "", "error policy: abort or continue (overrides the config)")
	flags.StringVar(&opts.onConflict, "on-conflict", "", "answer every conflict without asking: skip, replace, rename or combine")
	flags.BoolVar(&opts.metrics, "metrics", false, "print operation metrics to stderr when done")

	rootCmd.AddCommand(
		NewCopyCmd(opts),
		NewCutCmd(opts),
		NewMoveCmd(opts),
		NewRmCmd(opts),
		NewDupCmd(opts),
		NewTrashCmd(opts),
		NewCompressCmd(opts),
		NewExtractCmd(opts),
		NewChecksumCmd(opts),
		NewJournalCmd(opts),
		NewConfigCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	m := config.NewManager(o.cfgFile)
	if err := m.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := m.ParseError(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v (using defaults)\n", m.Path(), err)
	}
	o.cfg = m.Get()

	if o.policy != "" {
		if _, err := fileops.ParseErrorPolicy(o.policy); err != nil {
			return err
		}
		o.cfg.Operations.ErrorPolicy = o.policy
	}

	lc := o.cfg.Logging
	if err := debug.Init(debug.Config{Level: lc.Level, Format: lc.Format, OutputPath: lc.Output}); err != nil {
		return err
	}
	if o.debug {
		debug.EnableAll()
		debug.SetLevel("debug")
	}
	return nil
}

func (o *rootOptions) prompter(out io.Writer) (fileops.Prompter, error) {
	if o.onConflict == "" {
		return newTerminalPrompter(o.in, out), nil
	}
	d, err := parseDecision(o.onConflict)
	if err != nil {
		return nil, err
	}
	return fixedPrompter(d), nil
}

// session is an orchestrator whose foreground loop runs until stop.
type session struct {
	*app.Orchestrator
	stop func()
}

// open starts an orchestrator positioned at the working directory.
func (o *rootOptions) open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	p, err := o.prompter(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	orch, err := app.NewOrchestrator(o.cfg, p)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.Run(runCtx)
	}()

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	orch.Navigate(wd)

	return &session{
		Orchestrator: orch,
		stop: func() {
			cancel()
			<-done
			orch.Close()
		},
	}, nil
}
