package fileops

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// readTree maps every entry below root to its content; directories map to ""
// under a trailing slash.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			out[rel+"/"] = ""
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = string(b)
		return nil
	})
	require.NoError(t, err)
	return out
}

func wait(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	select {
	case <-task.Done():
		return task.Err()
	case <-ctx.Done():
		t.Fatalf("task %s (%s) did not finish", task.ID, task.Kind)
		return nil
	}
}

// scripted answers prompts from a function and records every conflict seen.
type scripted struct {
	mu     sync.Mutex
	seen   []Conflict
	answer func(Conflict) Answer
}

func (s *scripted) Ask(_ context.Context, c Conflict) Answer {
	s.mu.Lock()
	s.seen = append(s.seen, c)
	s.mu.Unlock()
	return s.answer(c)
}

func (s *scripted) conflicts() []Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Conflict(nil), s.seen...)
}

// interactive returns an engine whose conflicts are answered by answer on a
// foreground goroutine.
func interactive(t *testing.T, opts Options, answer func(Conflict) Answer) (*Engine, *scripted) {
	t.Helper()
	r := NewResolver()
	s := &scripted{answer: answer}
	ctx, cancel := context.WithCancel(context.Background())
	go r.Serve(ctx, s)
	t.Cleanup(func() {
		cancel()
		r.Close()
	})
	return NewEngine(r, opts), s
}

type noPrompts struct{ t *testing.T }

func (n noPrompts) Resolve(_ context.Context, c Conflict) (Answer, error) {
	n.t.Errorf("unexpected conflict %s -> %s", c.Source, c.Destination)
	return Answer{Decision: Skip}, nil
}

var sampleTree = map[string]string{
	"a.txt":          "alpha",
	"sub/b.txt":      "bravo!",
	"sub/deep/c.bin": "charlie charlie",
	"empty/.keep":    "",
}

func TestCopyRoundTrip(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	writeTree(t, src, sampleTree)
	require.NoError(t, os.Mkdir(dst, 0o755))
	before := readTree(t, src)

	e := NewEngine(noPrompts{t}, Options{ChunkSize: 4})

	task, err := e.Copy(context.Background(), []string{src}, dst)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))
	assert.Equal(t, before, readTree(t, filepath.Join(dst, "src")))

	task, err = e.Delete(context.Background(), []string{filepath.Join(dst, "src")})
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.NoDirExists(t, filepath.Join(dst, "src"))
	assert.Equal(t, before, readTree(t, src))
}

func TestCopyProgressConservation(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	writeTree(t, src, sampleTree)
	require.NoError(t, os.Mkdir(dst, 0o755))

	e := NewEngine(noPrompts{t}, Options{ChunkSize: 3})
	task, err := e.Copy(context.Background(), []string{src}, dst)
	require.NoError(t, err)

	want := int64(len("alpha") + len("bravo!") + len("charlie charlie"))
	assert.Equal(t, want, task.Progress().Total)
	require.NoError(t, wait(t, task))

	p := task.Progress()
	assert.Equal(t, want, p.Total)
	assert.Equal(t, want, p.Transferred)
	assert.Equal(t, 100, p.Percent())
	assert.Equal(t, Succeeded, task.State())
	assert.False(t, task.StartedAt().IsZero())
	assert.False(t, task.FinishedAt().Before(task.StartedAt()))
}

func TestCutEquivalence(t *testing.T) {
	root := t.TempDir()
	copySrc := filepath.Join(root, "one", "tree")
	cutSrc := filepath.Join(root, "two", "tree")
	copyDst := filepath.Join(root, "copied")
	cutDst := filepath.Join(root, "cut")
	writeTree(t, copySrc, sampleTree)
	writeTree(t, cutSrc, sampleTree)
	require.NoError(t, os.Mkdir(copyDst, 0o755))
	require.NoError(t, os.Mkdir(cutDst, 0o755))

	e := NewEngine(noPrompts{t}, Options{})

	copyTask, err := e.Copy(context.Background(), []string{copySrc}, copyDst)
	require.NoError(t, err)
	cutTask, err := e.Cut(context.Background(), []string{cutSrc}, cutDst)
	require.NoError(t, err)
	require.NoError(t, wait(t, copyTask))
	require.NoError(t, wait(t, cutTask))

	assert.Equal(t, readTree(t, filepath.Join(copyDst, "tree")), readTree(t, filepath.Join(cutDst, "tree")))
	assert.NoDirExists(t, cutSrc)

	p := cutTask.Progress()
	assert.Equal(t, 2*copyTask.Progress().Total, p.Total)
	assert.Equal(t, p.Total, p.Transferred)
}

func TestCutKeepsSourceWhenEntrySkipped(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "docs")
	dst := filepath.Join(root, "dst")
	writeTree(t, src, map[string]string{"a.txt": "new", "b.txt": "bee"})
	writeTree(t, filepath.Join(dst, "docs"), map[string]string{"a.txt": "old"})

	e := NewEngine(skipFiles{}, Options{})

	task, err := e.Cut(context.Background(), []string{src}, dst)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.DirExists(t, src)
	assert.Equal(t, map[string]string{"a.txt": "old", "b.txt": "bee"}, readTree(t, filepath.Join(dst, "docs")))
	assert.Equal(t, task.Progress().Total, task.Progress().Transferred+int64(len("new")))
}

// skipFiles combines directories and skips file conflicts.
type skipFiles struct{}

func (skipFiles) Resolve(_ context.Context, c Conflict) (Answer, error) {
	if c.DirConflict() {
		return Answer{Decision: Combine}, nil
	}
	return Answer{Decision: Skip}, nil
}

func TestMove(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	writeTree(t, src, sampleTree)
	require.NoError(t, os.Mkdir(dst, 0o755))
	want := readTree(t, src)

	e := NewEngine(noPrompts{t}, Options{})
	task, err := e.Move(context.Background(), []string{src}, dst)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.NoDirExists(t, src)
	assert.Equal(t, want, readTree(t, filepath.Join(dst, "src")))
	assert.Equal(t, task.Progress().Total, task.Progress().Transferred)
}

func TestMoveCombineOverwrites(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "music")
	dst := filepath.Join(root, "dst")
	writeTree(t, src, map[string]string{"a.mp3": "new a", "sub/b.mp3": "b"})
	writeTree(t, filepath.Join(dst, "music"), map[string]string{"a.mp3": "old a", "keep.mp3": "keep"})

	e, prompts := interactive(t, Options{}, func(Conflict) Answer { return Answer{Decision: Combine} })
	task, err := e.Move(context.Background(), []string{src}, dst)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	require.Len(t, prompts.conflicts(), 1)
	assert.Equal(t, Move, prompts.conflicts()[0].Kind)
	assert.NoDirExists(t, src)
	assert.Equal(t, map[string]string{
		"a.mp3":     "new a",
		"keep.mp3":  "keep",
		"sub/":      "",
		"sub/b.mp3": "b",
	}, readTree(t, filepath.Join(dst, "music")))
}

func TestMoveExplicitNames(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "note.txt")
	dst := filepath.Join(root, "bin")
	require.NoError(t, os.WriteFile(src, []byte("n"), 0o644))
	require.NoError(t, os.Mkdir(dst, 0o755))

	e := NewEngine(noPrompts{t}, Options{})
	task, err := e.Submit(context.Background(), Request{
		Kind:        Move,
		Sources:     []string{src},
		Destination: dst,
		Names:       []string{"note.2.txt"},
		Label:       "trashing",
	})
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.Equal(t, "trashing", task.Label)
	assert.FileExists(t, filepath.Join(dst, "note.2.txt"))
	assert.NoFileExists(t, src)
}

func TestDeleteCompleteness(t *testing.T) {
	root := t.TempDir()
	victim := filepath.Join(root, "victim")
	writeTree(t, victim, sampleTree)

	e := NewEngine(noPrompts{t}, Options{})
	task, err := e.Delete(context.Background(), []string{victim, filepath.Join(root, "never-existed")})
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	_, err = os.Lstat(victim)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, task.Progress().Total, task.Progress().Transferred)
}

func TestDeleteDoesNotFollowSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	outside := filepath.Join(root, "outside")
	victim := filepath.Join(root, "victim")
	writeTree(t, outside, map[string]string{"precious.txt": "keep me"})
	require.NoError(t, os.Mkdir(victim, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(victim, "link")))

	e := NewEngine(noPrompts{t}, Options{})
	task, err := e.Delete(context.Background(), []string{victim})
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.NoDirExists(t, victim)
	assert.FileExists(t, filepath.Join(outside, "precious.txt"))
}

func TestCopyRecreatesSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	writeTree(t, src, map[string]string{"target.txt": "t"})
	require.NoError(t, os.Symlink("target.txt", filepath.Join(src, "link")))
	require.NoError(t, os.Mkdir(dst, 0o755))

	e := NewEngine(noPrompts{t}, Options{})
	task, err := e.Copy(context.Background(), []string{src}, dst)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	target, err := os.Readlink(filepath.Join(dst, "src", "link"))
	require.NoError(t, err)
	assert.Equal(t, "target.txt", target)
}

func TestDuplicate(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "photo.tar.gz")
	dir := filepath.Join(root, "album")
	require.NoError(t, os.WriteFile(file, []byte("gz"), 0o644))
	writeTree(t, dir, map[string]string{"1.jpg": "one"})

	e := NewEngine(noPrompts{t}, Options{})
	for i := 0; i < 2; i++ {
		task, err := e.Duplicate(context.Background(), []string{file, dir})
		require.NoError(t, err)
		require.NoError(t, wait(t, task))
	}

	assert.FileExists(t, filepath.Join(root, "photo (copy 1).tar.gz"))
	assert.FileExists(t, filepath.Join(root, "photo (copy 2).tar.gz"))
	assert.FileExists(t, filepath.Join(root, "album (copy 1)", "1.jpg"))
	assert.FileExists(t, filepath.Join(root, "album (copy 2)", "1.jpg"))
}

func TestCopyIntoSameDirectoryRenames(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	e := NewEngine(noPrompts{t}, Options{CopyLabel: "Kopie"})
	task, err := e.Copy(context.Background(), []string{file}, root)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.FileExists(t, filepath.Join(root, "a (Kopie 1).txt"))
}

func TestMoveOntoItselfIsNoop(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	e := NewEngine(noPrompts{t}, Options{})
	task, err := e.Move(context.Background(), []string{file}, root)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))
	assert.FileExists(t, file)
}

func TestCutOntoItselfIsNoop(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	e := NewEngine(noPrompts{t}, Options{})
	task, err := e.Cut(context.Background(), []string{file}, root)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.Equal(t, map[string]string{"a.txt": "a"}, readTree(t, root))
}

func TestVanishedSourceIsSkipped(t *testing.T) {
	for _, kind := range []Kind{Copy, Cut, Move, Duplicate} {
		t.Run(kind.String(), func(t *testing.T) {
			root := t.TempDir()
			present := filepath.Join(root, "src", "here.txt")
			gone := filepath.Join(root, "src", "gone.txt")
			dst := filepath.Join(root, "dst")
			writeTree(t, filepath.Join(root, "src"), map[string]string{"here.txt": "here"})
			require.NoError(t, os.Mkdir(dst, 0o755))

			req := Request{Kind: kind, Sources: []string{gone, present}}
			if kind != Duplicate {
				req.Destination = dst
			}
			e := NewEngine(noPrompts{t}, Options{})
			task, err := e.Submit(context.Background(), req)
			require.NoError(t, err)
			require.NoError(t, wait(t, task))
			assert.Equal(t, Succeeded, task.State())
			assert.Empty(t, task.Errors())

			switch kind {
			case Duplicate:
				assert.Equal(t, map[string]string{"here.txt": "here", "here (copy 1).txt": "here"},
					readTree(t, filepath.Join(root, "src")))
			case Copy:
				assert.Equal(t, map[string]string{"here.txt": "here"}, readTree(t, dst))
				assert.FileExists(t, present)
			default:
				assert.Equal(t, map[string]string{"here.txt": "here"}, readTree(t, dst))
				assert.NoFileExists(t, present)
			}
		})
	}
}

func TestReplaceDirectoryDropsStaleEntries(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "A")
	b := filepath.Join(root, "B")
	writeTree(t, a, map[string]string{"x.txt": "fresh", "sub/y.txt": "why"})
	writeTree(t, b, map[string]string{"A/stale.txt": "old", "A/x.txt": "old x"})

	e, prompts := interactive(t, Options{}, func(Conflict) Answer { return Answer{Decision: Replace} })
	task, err := e.Copy(context.Background(), []string{a}, b)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	require.Len(t, prompts.conflicts(), 1)
	assert.True(t, prompts.conflicts()[0].DirConflict())
	assert.NoFileExists(t, filepath.Join(b, "A", "stale.txt"))
	assert.Equal(t, readTree(t, a), readTree(t, filepath.Join(b, "A")))
}

func TestCopyIntoOwnSubtree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeTree(t, src, map[string]string{"inner/x": "x"})

	e := NewEngine(noPrompts{t}, Options{})
	_, err := e.Copy(context.Background(), []string{src}, filepath.Join(src, "inner"))
	assert.ErrorIs(t, err, ErrDestinationInsideSource)

	_, err = e.Cut(context.Background(), []string{src}, src)
	assert.ErrorIs(t, err, ErrDestinationInsideSource)
}

func TestSubmitValidation(t *testing.T) {
	e := NewEngine(noPrompts{t}, Options{})
	ctx := context.Background()

	_, err := e.Copy(ctx, nil, "/tmp")
	assert.Error(t, err)

	_, err = e.Submit(ctx, Request{Kind: Move, Sources: []string{"/a"}})
	assert.Error(t, err)

	_, err = e.Submit(ctx, Request{Kind: Copy, Sources: []string{"/a", "/b"}, Destination: "/c", Names: []string{"x"}})
	assert.Error(t, err)
}

// Directory A holds x.txt and sub/y.txt; B already holds A/x.txt. Copying A
// into B raises one directory conflict for B/A; Combine then raises the file
// conflict for x.txt only.
func TestCopyCombineScenario(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "A")
	b := filepath.Join(root, "B")
	writeTree(t, a, map[string]string{"x.txt": "0123456789", "sub/y.txt": "hello"})
	writeTree(t, b, map[string]string{"A/x.txt": "stale"})

	e, prompts := interactive(t, Options{}, func(c Conflict) Answer {
		if c.DirConflict() {
			return Answer{Decision: Combine}
		}
		return Answer{Decision: Replace}
	})

	task, err := e.Copy(context.Background(), []string{a}, b)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	seen := prompts.conflicts()
	var dirConflicts int
	for _, c := range seen {
		if c.DirConflict() {
			dirConflicts++
			assert.Equal(t, filepath.Join(b, "A"), c.Destination)
		}
	}
	assert.Equal(t, 1, dirConflicts)
	assert.Len(t, seen, 2)

	assert.Equal(t, map[string]string{
		"x.txt":     "0123456789",
		"sub/":      "",
		"sub/y.txt": "hello",
	}, readTree(t, filepath.Join(b, "A")))
	assert.Equal(t, int64(15), task.Progress().Transferred)
}

func TestApplyToAllIsRemembered(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	writeTree(t, src, map[string]string{"1": "new", "2": "new", "3": "new"})
	writeTree(t, dst, map[string]string{"1": "old", "2": "old", "3": "old"})

	e, prompts := interactive(t, Options{}, func(Conflict) Answer {
		return Answer{Decision: RenameNextTo, ApplyToAll: true}
	})

	task, err := e.Copy(context.Background(),
		[]string{filepath.Join(src, "1"), filepath.Join(src, "2"), filepath.Join(src, "3")}, dst)
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.Len(t, prompts.conflicts(), 1)
	for _, n := range []string{"1", "2", "3"} {
		assert.FileExists(t, filepath.Join(dst, n+" (copy 1)"))
	}
}

func TestErrorPolicy(t *testing.T) {
	setup := func(t *testing.T) (root, nested, good, dst string) {
		root = t.TempDir()
		// Replacing root/d with root/d/d would destroy the source
		nested = filepath.Join(root, "d", "d")
		writeTree(t, nested, map[string]string{"f": "f"})
		good = filepath.Join(root, "src", "good.txt")
		writeTree(t, filepath.Join(root, "src"), map[string]string{"good.txt": "ok"})
		return root, nested, good, root
	}

	t.Run("abort", func(t *testing.T) {
		root, nested, good, dst := setup(t)
		e := NewEngine(Always(Replace), Options{Policy: AbortOnError})
		task, err := e.Copy(context.Background(), []string{nested, good}, dst)
		require.NoError(t, err)

		err = wait(t, task)
		require.Error(t, err)
		var opErr *OpError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, Copy, opErr.Kind)
		assert.NoFileExists(t, filepath.Join(root, "good.txt"))
		assert.DirExists(t, nested)
		assert.Equal(t, Failed, task.State())
	})

	t.Run("continue", func(t *testing.T) {
		root, nested, good, dst := setup(t)
		e := NewEngine(Always(Replace), Options{Policy: ContinueAndCollectErrors})
		task, err := e.Copy(context.Background(), []string{nested, good}, dst)
		require.NoError(t, err)

		require.Error(t, wait(t, task))
		assert.Len(t, task.Errors(), 1)
		assert.FileExists(t, filepath.Join(root, "good.txt"))
		assert.DirExists(t, nested)
	})
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []string
}

func (o *recordingObserver) TaskStarted(t *Task) {
	o.mu.Lock()
	o.started = append(o.started, t.ID)
	o.mu.Unlock()
}

func (o *recordingObserver) TaskFinished(t *Task) {
	o.mu.Lock()
	o.finished = append(o.finished, t.ID)
	o.mu.Unlock()
}

func TestObserversAndWait(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "a", "b": "b"})

	obs := &recordingObserver{}
	e := NewEngine(noPrompts{t}, Options{MaxWorkers: 1, Observers: []Observer{obs}})

	t1, err := e.Duplicate(context.Background(), []string{filepath.Join(root, "a")})
	require.NoError(t, err)
	t2, err := e.Duplicate(context.Background(), []string{filepath.Join(root, "b")})
	require.NoError(t, err)
	e.Wait()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.ElementsMatch(t, []string{t1.ID, t2.ID}, obs.started)
	assert.ElementsMatch(t, []string{t1.ID, t2.ID}, obs.finished)
}

func TestMaxWorkersQueuedTaskCancel(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	writeTree(t, src, map[string]string{"f": "new"})
	writeTree(t, dst, map[string]string{"f": "old"})

	r := NewResolver()
	defer r.Close()
	e := NewEngine(r, Options{MaxWorkers: 1})

	// The first task holds the only slot while its conflict is unanswered
	blocking, err := e.Copy(context.Background(), []string{filepath.Join(src, "f")}, dst)
	require.NoError(t, err)
	prompt := <-r.Prompts()

	ctx, cancel := context.WithCancel(context.Background())
	queued, err := e.Copy(ctx, []string{filepath.Join(src, "f")}, dst)
	require.NoError(t, err)
	assert.Equal(t, Pending, queued.State())
	cancel()
	assert.ErrorIs(t, wait(t, queued), context.Canceled)

	prompt.Reply(Answer{Decision: Skip})
	require.NoError(t, wait(t, blocking))
	assert.Equal(t, "old", readTree(t, dst)["f"])
}
