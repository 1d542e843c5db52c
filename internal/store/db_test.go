package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j := NewJournal()
	require.NoError(t, j.Open(filepath.Join(t.TempDir(), "nested", "journal.db")))
	t.Cleanup(j.Close)
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, Record{
		ID: "1", Kind: "copy", Label: "copying",
		Sources: []string{"/a", "/b c"}, Destination: "/dst",
		State: "running", Total: 10, StartedAt: base,
	}))
	require.NoError(t, j.Record(ctx, Record{
		ID: "2", Kind: "delete", Label: "deleting",
		Sources: []string{"/old"}, State: "succeeded",
		Transferred: 3, Total: 3, StartedAt: base.Add(time.Minute), FinishedAt: base.Add(2 * time.Minute),
	}))

	recs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2", recs[0].ID)
	assert.Equal(t, []string{"/old"}, recs[0].Sources)
	assert.True(t, recs[0].FinishedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, []string{"/a", "/b c"}, recs[1].Sources)
	assert.True(t, recs[1].FinishedAt.IsZero())

	limited, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordUpserts(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	rec := Record{ID: "x", Kind: "move", Label: "moving", Sources: []string{"/s"}, State: "running", StartedAt: time.Now()}
	require.NoError(t, j.Record(ctx, rec))
	rec.State = "failed"
	rec.Error = "permission denied"
	require.NoError(t, j.Record(ctx, rec))

	recs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "failed", recs[0].State)
	assert.Equal(t, "permission denied", recs[0].Error)
}

func TestStartDrainsQueue(t *testing.T) {
	j := openJournal(t)

	done := make(chan struct{})
	go func() {
		j.Start()
		close(done)
	}()
	j.RequestChan <- Record{ID: "q", Kind: "copy", Label: "copying", Sources: []string{"/q"}, State: "succeeded", StartedAt: time.Now()}
	close(j.RequestChan)
	<-done

	recs, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "q", recs[0].ID)
}

func TestClosedJournal(t *testing.T) {
	j := NewJournal()
	assert.Error(t, j.Record(context.Background(), Record{ID: "1"}))
	_, err := j.Recent(context.Background(), 1)
	assert.Error(t, err)
}
