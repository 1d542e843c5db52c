package app

import (
	"context"
	"sync"

	"github.com/justyntemme/razorops/internal/archive"
	"github.com/justyntemme/razorops/internal/config"
	"github.com/justyntemme/razorops/internal/debug"
	"github.com/justyntemme/razorops/internal/fileops"
	"github.com/justyntemme/razorops/internal/fs"
	"github.com/justyntemme/razorops/internal/store"
	"github.com/justyntemme/razorops/internal/trash"
	"go.uber.org/zap"
)

// Orchestrator owns the foreground loop. User actions may be called from any
// goroutine; conflict prompts, listings and refreshes are handled by Run.
type Orchestrator struct {
	cfg      config.Config
	prompter fileops.Prompter

	deps     *SharedDeps
	nav      *NavigationController
	ops      *FileOpsController
	resolver *fileops.Resolver
	engine   *fileops.Engine

	refresher   *refreshObserver
	journal     *store.Journal
	journalDone chan struct{}

	// OnListing, when set, receives every accepted directory listing on the
	// foreground loop.
	OnListing func(path string, entries []fs.Entry)

	mu      sync.Mutex
	listing []fs.Entry

	closeOnce sync.Once
}

// EngineOptions converts the operations section of cfg.
func EngineOptions(cfg config.Config) (fileops.Options, error) {
	policy, err := fileops.ParseErrorPolicy(cfg.Operations.ErrorPolicy)
	if err != nil {
		return fileops.Options{}, err
	}
	return fileops.Options{
		ChunkSize:      cfg.Operations.ChunkSize,
		Policy:         policy,
		CopyLabel:      cfg.Operations.CopyLabel,
		MaxWorkers:     cfg.Operations.MaxWorkers,
		CheckFreeSpace: cfg.Operations.CheckFreeSpace,
	}, nil
}

// NewOrchestrator wires the engine and its collaborators from cfg. Conflicts
// are answered by prompter on the Run loop, or skipped when it is nil. The
// journal and the directory watcher are optional: failing to start either is
// logged, not fatal.
func NewOrchestrator(cfg config.Config, prompter fileops.Prompter) (*Orchestrator, error) {
	opts, err := EngineOptions(cfg)
	if err != nil {
		return nil, err
	}
	if prompter == nil {
		prompter = fileops.PrompterFunc(func(context.Context, fileops.Conflict) fileops.Answer {
			return fileops.Answer{Decision: fileops.Skip}
		})
	}

	o := &Orchestrator{
		cfg:       cfg,
		prompter:  prompter,
		resolver:  fileops.NewResolver(),
		refresher: newRefreshObserver(),
	}
	opts.Observers = append(opts.Observers, o.refresher)

	if cfg.Journal.Enabled {
		j := store.NewJournal()
		if err := j.Open(cfg.Journal.Path); err != nil {
			debug.L().Warn("journal unavailable", zap.String("path", cfg.Journal.Path), zap.Error(err))
		} else {
			o.journal = j
			o.journalDone = make(chan struct{})
			go func() {
				defer close(o.journalDone)
				j.Start()
			}()
			opts.Observers = append(opts.Observers, &journalObserver{journal: j})
		}
	}

	o.engine = fileops.NewEngine(o.resolver, opts)

	fsys := fs.NewSystem()
	go fsys.Start()

	watcher, err := NewDirectoryWatcher(cfg.Watcher.Debounce())
	if err != nil {
		debug.L().Warn("directory watcher unavailable", zap.Error(err))
		watcher = nil
	}

	o.deps = &SharedDeps{
		Dir:    NewDirContext(""),
		FS:     fsys,
		Engine: o.engine,
		Bin:    trash.New(cfg.Trash.Path),
		Archive: &archive.Dispatcher{
			DeleteAfterExtract: cfg.Archive.DeleteAfterExtract,
			Deleter:            o.engine,
		},
		Watcher: watcher,
		Refresh: o.refresher.request,
	}
	o.nav = NewNavigationController(o.deps)
	o.ops = NewFileOpsController(o.deps)
	return o, nil
}

// Run serves the foreground loop until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	var changed <-chan string
	if o.deps.Watcher != nil {
		changed = o.deps.Watcher.Notify()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case p := <-o.resolver.Prompts():
			o.handlePrompt(ctx, p)

		case resp := <-o.deps.FS.ResponseChan:
			o.handleListing(resp)

		case dir := <-changed:
			if dir == o.deps.Dir.Get() {
				debug.Log(debug.APP, "external change in %s", dir)
				o.nav.Refresh()
			}

		case <-o.refresher.refresh:
			o.nav.Refresh()
		}
	}
}

func (o *Orchestrator) handleListing(resp fs.Response) {
	if !o.nav.accept(resp) {
		debug.Log(debug.FS, "dropping stale listing for %s (gen %d)", resp.Path, resp.Gen)
		return
	}
	if resp.Err != nil {
		debug.L().Warn("listing failed", zap.String("path", resp.Path), zap.Error(resp.Err))
		return
	}

	sortEntries(resp.Entries)
	o.mu.Lock()
	o.listing = resp.Entries
	o.mu.Unlock()

	if o.OnListing != nil {
		o.OnListing(resp.Path, resp.Entries)
	}
}

// Listing returns the last accepted listing of the current directory.
func (o *Orchestrator) Listing() []fs.Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]fs.Entry(nil), o.listing...)
}

// Close stops the collaborators after every task has finished. Run must have
// returned before Close is called.
func (o *Orchestrator) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.resolver.Close()
		o.engine.Wait()

		if o.journal != nil {
			close(o.journal.RequestChan)
			<-o.journalDone
			o.journal.Close()
		}
		if o.deps.Watcher != nil {
			err = o.deps.Watcher.Close()
		}
		close(o.deps.FS.RequestChan)
	})
	return err
}

// Engine returns the underlying engine.
func (o *Orchestrator) Engine() *fileops.Engine { return o.engine }

// Bin returns the trash bin.
func (o *Orchestrator) Bin() *trash.Bin { return o.deps.Bin }

// Journal returns the operation journal, nil when disabled or unavailable.
func (o *Orchestrator) Journal() *store.Journal { return o.journal }

// History returns the navigation history.
func (o *Orchestrator) History() *History { return o.nav.History() }

// CurrentPath returns the current directory.
func (o *Orchestrator) CurrentPath() string { return o.nav.CurrentPath() }

func (o *Orchestrator) Navigate(path string) string { return o.nav.Navigate(path) }
func (o *Orchestrator) GoBack() bool { return o.nav.GoBack() }
func (o *Orchestrator) GoForward() bool { return o.nav.GoForward() }
func (o *Orchestrator) GoUp() bool { return o.nav.GoUp() }

func (o *Orchestrator) SetClipboard(op ClipOp, paths []string) { o.ops.SetClipboard(op, paths) }

func (o *Orchestrator) Clipboard() *Clipboard { return o.ops.Clipboard() }

func (o *Orchestrator) Paste(ctx context.Context) (*fileops.Task, error) {
	return o.ops.Paste(ctx)
}

func (o *Orchestrator) Delete(ctx context.Context, paths []string) (*fileops.Task, error) {
	return o.ops.Delete(ctx, paths)
}

func (o *Orchestrator) Duplicate(ctx context.Context, paths []string) (*fileops.Task, error) {
	return o.ops.Duplicate(ctx, paths)
}

func (o *Orchestrator) MoveTo(ctx context.Context, paths []string, dir string) (*fileops.Task, error) {
	return o.ops.MoveTo(ctx, paths, dir)
}

func (o *Orchestrator) Trash(ctx context.Context, paths []string) (*fileops.Task, error) {
	return o.ops.Trash(ctx, paths)
}

// Compress archives paths into container. An empty kind comes from the
// container's extension, then from the configured default.
func (o *Orchestrator) Compress(ctx context.Context, paths []string, container string, kind archive.Kind) error {
	if kind == "" {
		if _, err := archive.KindFromPath(container); err != nil && o.cfg.Archive.DefaultKind != "" {
			k, perr := archive.ParseKind(o.cfg.Archive.DefaultKind)
			if perr != nil {
				return perr
			}
			kind = k
			container += k.Extension()
		}
	}
	return o.ops.Compress(ctx, paths, container, kind)
}

func (o *Orchestrator) Extract(ctx context.Context, container string) (string, *fileops.Task, error) {
	return o.ops.Extract(ctx, container)
}
