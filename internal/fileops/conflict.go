package fileops

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/justyntemme/razorops/internal/debug"
	"go.uber.org/zap"
)

// Conflict describes a destination that already exists.
type Conflict struct {
	Kind        Kind // Copy or Move
	Source      string
	Destination string
	SourceIsDir bool
	DestIsDir   bool
	SourceSize  int64
	DestSize    int64
	SourceTime  time.Time
	DestTime    time.Time
}

func newConflict(kind Kind, src, dst string, srcInfo, dstInfo os.FileInfo) Conflict {
	return Conflict{
		Kind:        kind.conflictKind(),
		Source:      src,
		Destination: dst,
		SourceIsDir: srcInfo.IsDir(),
		DestIsDir:   dstInfo.IsDir(),
		SourceSize:  srcInfo.Size(),
		DestSize:    dstInfo.Size(),
		SourceTime:  srcInfo.ModTime(),
		DestTime:    dstInfo.ModTime(),
	}
}

// DirConflict reports whether both sides are directories.
func (c Conflict) DirConflict() bool { return c.SourceIsDir && c.DestIsDir }

// Choices returns the decisions the user may pick for c.
func (c Conflict) Choices() []Decision { return Choices(c.DirConflict()) }

// ConflictResolver is what a running task calls when it hits a conflict. It
// blocks until a decision is available.
type ConflictResolver interface {
	Resolve(ctx context.Context, c Conflict) (Answer, error)
}

// Prompter answers conflicts on the foreground goroutine, typically by
// showing a dialog.
type Prompter interface {
	Ask(ctx context.Context, c Conflict) Answer
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, c Conflict) Answer

func (f PrompterFunc) Ask(ctx context.Context, c Conflict) Answer { return f(ctx, c) }

// Prompt is one conflict waiting for the foreground. Reply must be called
// exactly once; later calls are ignored.
type Prompt struct {
	Conflict Conflict
	reply    chan Answer
	once     sync.Once
}

// Reply delivers the answer to the waiting worker.
func (p *Prompt) Reply(a Answer) {
	p.once.Do(func() { p.reply <- a })
}

type pendingKey struct {
	kind Kind
	src  string
	dst  string
}

type pending struct {
	done    chan struct{}
	cancel  context.CancelFunc
	answer  Answer
	err     error
	waiters int
}

// Resolver bridges background tasks and the foreground goroutine. Workers
// call Resolve; the foreground consumes Prompts (or calls Serve) and replies.
// Identical pending conflicts share one prompt and one answer.
type Resolver struct {
	prompts chan *Prompt
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	pending map[pendingKey]*pending
}

// NewResolver returns an open resolver.
func NewResolver() *Resolver {
	return &Resolver{
		prompts: make(chan *Prompt),
		closed:  make(chan struct{}),
		pending: make(map[pendingKey]*pending),
	}
}

// Prompts is the channel the foreground goroutine reads conflicts from.
func (r *Resolver) Prompts() <-chan *Prompt { return r.prompts }

// Resolve blocks until the conflict is answered, ctx is done, or the
// resolver is closed. A caller whose ctx ends leaves the shared prompt; the
// prompt itself is abandoned only once no caller waits on it.
func (r *Resolver) Resolve(ctx context.Context, c Conflict) (Answer, error) {
	key := pendingKey{kind: c.Kind, src: c.Source, dst: c.Destination}

	r.mu.Lock()
	p, ok := r.pending[key]
	if ok {
		p.waiters++
		r.mu.Unlock()
		debug.Log(debug.CONFLICT, "joining pending conflict %s -> %s", c.Source, c.Destination)
	} else {
		askCtx, cancel := context.WithCancel(context.Background())
		p = &pending{done: make(chan struct{}), cancel: cancel, waiters: 1}
		r.pending[key] = p
		r.mu.Unlock()
		go r.ask(askCtx, key, p, c)
	}

	select {
	case <-p.done:
		return p.answer, p.err
	case <-ctx.Done():
		r.leave(key, p)
		return Answer{}, ctx.Err()
	}
}

// leave drops one waiter from p and abandons the prompt when it was the last.
func (r *Resolver) leave(key pendingKey, p *pending) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.waiters--
	if p.waiters > 0 {
		return
	}
	if r.pending[key] == p {
		delete(r.pending, key)
	}
	p.cancel()
}

// ask hands the conflict to the foreground and publishes the answer to every
// waiter of key. ctx ends only when every waiter has left.
func (r *Resolver) ask(ctx context.Context, key pendingKey, p *pending, c Conflict) {
	defer p.cancel()

	prompt := &Prompt{Conflict: c, reply: make(chan Answer, 1)}

	var answer Answer
	var err error

	select {
	case r.prompts <- prompt:
		debug.Log(debug.CONFLICT, "prompt issued for %s -> %s (dir=%v)", c.Source, c.Destination, c.DirConflict())
		select {
		case answer = <-prompt.reply:
			if !answer.Decision.ValidFor(c.DirConflict()) {
				err = ErrInvalidDecision
			}
		case <-ctx.Done():
			err = ctx.Err()
		case <-r.closed:
			err = ErrResolverClosed
		}
	case <-ctx.Done():
		err = ctx.Err()
	case <-r.closed:
		err = ErrResolverClosed
	}

	r.mu.Lock()
	p.answer, p.err = answer, err
	if r.pending[key] == p {
		delete(r.pending, key)
	}
	r.mu.Unlock()
	close(p.done)

	if err == nil {
		debug.L().Info("conflict resolved",
			zap.String("source", c.Source),
			zap.String("destination", c.Destination),
			zap.Stringer("decision", answer.Decision),
			zap.Bool("applyToAll", answer.ApplyToAll))
	}
}

// Serve answers prompts with p until ctx is done or the resolver is closed.
// Call it from the goroutine that owns user interaction.
func (r *Resolver) Serve(ctx context.Context, p Prompter) error {
	for {
		select {
		case prompt := <-r.prompts:
			prompt.Reply(p.Ask(ctx, prompt.Conflict))
		case <-ctx.Done():
			return ctx.Err()
		case <-r.closed:
			return nil
		}
	}
}

// Close releases every waiting worker with ErrResolverClosed.
func (r *Resolver) Close() {
	r.once.Do(func() { close(r.closed) })
}

func (r *Resolver) waitersFor(c Conflict) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pending[pendingKey{kind: c.Kind, src: c.Source, dst: c.Destination}]; ok {
		return p.waiters
	}
	return 0
}

// Always returns a resolver that answers every conflict with d without
// prompting. Combine degrades to Replace for conflicts that aren't
// directory/directory.
func Always(d Decision) ConflictResolver {
	return alwaysResolver{d: d}
}

type alwaysResolver struct{ d Decision }

func (a alwaysResolver) Resolve(_ context.Context, c Conflict) (Answer, error) {
	d := a.d
	if d == Combine && !c.DirConflict() {
		d = Replace
	}
	return Answer{Decision: d}, nil
}
