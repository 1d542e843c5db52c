package app

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryBackForward(t *testing.T) {
	h := NewHistory()
	assert.False(t, h.CanBack())
	_, ok := h.Back()
	assert.False(t, ok)

	h.Add("/a")
	h.Add("/b")
	h.Add("/c")

	p, ok := h.Back()
	require.True(t, ok)
	assert.Equal(t, "/b", p)
	p, ok = h.Back()
	require.True(t, ok)
	assert.Equal(t, "/a", p)
	_, ok = h.Back()
	assert.False(t, ok, "back at the first entry is a no-op")

	p, ok = h.Forward()
	require.True(t, ok)
	assert.Equal(t, "/b", p)
	assert.True(t, h.CanForward())
}

func TestHistoryAddPrunesForward(t *testing.T) {
	h := NewHistory()
	h.Add("/a")
	h.Add("/b")
	h.Add("/c")
	h.Back()
	h.Back()

	h.Add("/d")
	entries, idx := h.Entries()
	assert.Equal(t, []string{"/a", "/d"}, entries)
	assert.Equal(t, 1, idx)
	assert.False(t, h.CanForward())
}

func TestHistoryIsBounded(t *testing.T) {
	h := NewHistory()
	for i := 0; i < maxHistorySize+25; i++ {
		h.Add(fmt.Sprintf("/dir%d", i))
	}
	entries, idx := h.Entries()
	require.Len(t, entries, maxHistorySize)
	assert.Equal(t, "/dir25", entries[0])
	assert.Equal(t, maxHistorySize-1, idx)

	cur, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("/dir%d", maxHistorySize+24), cur)
}

func TestDirContext(t *testing.T) {
	c := NewDirContext("")
	assert.Equal(t, homeDir(), c.Get())

	dir := t.TempDir()
	c.Set(dir + "/sub/..")
	assert.Equal(t, filepath.Clean(dir), c.Get())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(filepath.Join(dir, fmt.Sprint(i)))
			_ = c.Get()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, dir, filepath.Dir(c.Get()))
}

func TestExpandPath(t *testing.T) {
	home := homeDir()
	tests := []struct {
		input, base, want string
	}{
		{"", "/srv", "/srv"},
		{"  ", "/srv", "/srv"},
		{"docs", "/srv", "/srv/docs"},
		{"../etc", "/srv/www", "/srv/etc"},
		{"./a/./b", "/srv", "/srv/a/b"},
		{"/abs/path/", "/srv", "/abs/path"},
		{"~", "/srv", home},
		{"~/notes", "/srv", filepath.Join(home, "notes")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), expandPath(tt.input, tt.base))
		})
	}
}
