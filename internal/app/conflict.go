package app

import (
	"context"

	"github.com/justyntemme/razorops/internal/debug"
	"github.com/justyntemme/razorops/internal/fileops"
	"go.uber.org/zap"
)

// handlePrompt shows a conflict to the user and hands the answer back to the
// waiting task. It runs on the foreground loop, so only one dialog is ever
// open.
func (o *Orchestrator) handlePrompt(ctx context.Context, p *fileops.Prompt) {
	c := p.Conflict
	debug.Log(debug.CONFLICT, "prompt: %s %s -> %s (dir=%v)", c.Kind, c.Source, c.Destination, c.DirConflict())

	answer := o.prompter.Ask(ctx, c)
	p.Reply(answer)

	debug.L().Info("conflict answered",
		zap.String("destination", c.Destination),
		zap.Stringer("decision", answer.Decision),
		zap.Bool("applyToAll", answer.ApplyToAll))
}
