package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/justyntemme/razorops/internal/fileops"
)

// terminalPrompter asks about each conflict on the terminal. An uppercase
// answer applies the decision to the rest of the operation.
type terminalPrompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) Ask(_ context.Context, c fileops.Conflict) fileops.Answer {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s already exists\n", c.Destination)
	fmt.Fprintf(p.out, "  source:      %s\n", describe(c.SourceIsDir, c.SourceSize, c.SourceTime))
	fmt.Fprintf(p.out, "  destination: %s\n", describe(c.DestIsDir, c.DestSize, c.DestTime))

	choices := c.Choices()
	for {
		fmt.Fprintf(p.out, "%s (uppercase applies to all): ", choiceLine(choices))
		line, err := p.in.ReadString('\n')
		if a, ok := parseAnswer(strings.TrimSpace(line), c.DirConflict()); ok {
			return a
		}
		if err != nil {
			// No more input: leave the destination alone
			fmt.Fprintln(p.out, "skip")
			return fileops.Answer{Decision: fileops.Skip}
		}
	}
}

func describe(isDir bool, size int64, modified time.Time) string {
	kind := "file, " + humanize.Bytes(uint64(max(size, 0)))
	if isDir {
		kind = "directory"
	}
	if modified.IsZero() {
		return kind
	}
	return kind + ", modified " + humanize.Time(modified)
}

var choiceKeys = map[fileops.Decision]string{
	fileops.Skip:         "[s]kip",
	fileops.Replace:      "[r]eplace",
	fileops.RenameNextTo: "[n]ext-to",
	fileops.Combine:      "[c]ombine",
}

func choiceLine(choices []fileops.Decision) string {
	parts := make([]string, len(choices))
	for i, d := range choices {
		parts[i] = choiceKeys[d]
	}
	return strings.Join(parts, " ")
}

// parseAnswer reads one of s, r, n, c. Uppercase sets ApplyToAll.
func parseAnswer(s string, dirConflict bool) (fileops.Answer, bool) {
	if len(s) != 1 {
		return fileops.Answer{}, false
	}
	var d fileops.Decision
	switch strings.ToLower(s) {
	case "s":
		d = fileops.Skip
	case "r":
		d = fileops.Replace
	case "n":
		d = fileops.RenameNextTo
	case "c":
		d = fileops.Combine
	default:
		return fileops.Answer{}, false
	}
	if !d.ValidFor(dirConflict) {
		return fileops.Answer{}, false
	}
	return fileops.Answer{Decision: d, ApplyToAll: s != strings.ToLower(s)}, true
}

func parseDecision(s string) (fileops.Decision, error) {
	switch strings.ToLower(s) {
	case "skip":
		return fileops.Skip, nil
	case "replace":
		return fileops.Replace, nil
	case "rename", "next-to":
		return fileops.RenameNextTo, nil
	case "combine", "merge":
		return fileops.Combine, nil
	}
	return fileops.Skip, fmt.Errorf("unknown conflict decision %q", s)
}

// fixedPrompter answers every conflict with d. Combine only applies to
// directory pairs; file conflicts under it are replaced.
func fixedPrompter(d fileops.Decision) fileops.Prompter {
	return fileops.PrompterFunc(func(_ context.Context, c fileops.Conflict) fileops.Answer {
		if !d.ValidFor(c.DirConflict()) {
			return fileops.Answer{Decision: fileops.Replace}
		}
		return fileops.Answer{Decision: d}
	})
}
