// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pagecache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pages map[string]string
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeSource) FetchWikitext(ctx context.Context, title string) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", f.err
	}
	text, ok := f.pages[title]
	if !ok {
		return "", errors.New("missingtitle")
	}
	return text, nil
}

func openCache(t *testing.T, path string, src Source) *Cache {
	t.Helper()
	c, err := Open(path, src)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGet_MissThenHit(t *testing.T) {
	src := &fakeSource{pages: map[string]string{"Elrond": "{{Infobox character|name=Elrond}}"}}
	c := openCache(t, filepath.Join(t.TempDir(), "pages.db"), src)
	ctx := context.Background()

	text, err := c.Get(ctx, "Elrond")
	require.NoError(t, err)
	assert.Equal(t, "{{Infobox character|name=Elrond}}", text)

	text, err = c.Get(ctx, "Elrond")
	require.NoError(t, err)
	assert.Equal(t, "{{Infobox character|name=Elrond}}", text)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestGet_CanonicalKey(t *testing.T) {
	src := &fakeSource{pages: map[string]string{"Minas Tirith": "city"}}
	c := openCache(t, filepath.Join(t.TempDir(), "pages.db"), src)
	ctx := context.Background()

	_, err := c.Get(ctx, " minas_Tirith ")
	require.NoError(t, err)
	ok, err := c.Has(ctx, "Minas Tirith")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestGet_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pages.db")
	ctx := context.Background()

	c, err := Open(path, &fakeSource{pages: map[string]string{"Elrond": "text"}})
	require.NoError(t, err)
	_, err = c.Get(ctx, "Elrond")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	offline := openCache(t, path, nil)
	text, err := offline.Get(ctx, "Elrond")
	require.NoError(t, err)
	assert.Equal(t, "text", text)

	_, err = offline.Get(ctx, "Arwen")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestGet_FetchError(t *testing.T) {
	cause := errors.New("HTTP 503")
	c := openCache(t, filepath.Join(t.TempDir(), "pages.db"), &fakeSource{err: cause})
	ctx := context.Background()

	_, err := c.Get(ctx, "Elrond")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Elrond", fe.Title)
	assert.ErrorIs(t, err, cause)

	ok, err := c.Has(ctx, "Elrond")
	require.NoError(t, err)
	assert.False(t, ok, "failures are not cached")
	assert.Equal(t, int64(1), c.Stats().Failures)
}

func TestGet_ConcurrentMissesShareOneFetch(t *testing.T) {
	src := &fakeSource{pages: map[string]string{"Elrond": "text"}, gate: make(chan struct{})}
	c := openCache(t, filepath.Join(t.TempDir(), "pages.db"), src)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := c.Get(context.Background(), "Elrond")
			assert.NoError(t, err)
			results[i] = text
		}()
	}
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, r := range results {
		assert.Equal(t, "text", r)
	}
}

func TestPut_FirstWriterWins(t *testing.T) {
	c := openCache(t, filepath.Join(t.TempDir(), "pages.db"), nil)
	ctx := context.Background()

	stored, err := c.Put(ctx, "Elrond", "first")
	require.NoError(t, err)
	assert.Equal(t, "first", stored)

	stored, err = c.Put(ctx, "Elrond", "second")
	require.NoError(t, err)
	assert.Equal(t, "first", stored)

	text, err := c.Get(ctx, "Elrond")
	require.NoError(t, err)
	assert.Equal(t, "first", text)
}

func TestPut_ContentAddressed(t *testing.T) {
	c := openCache(t, filepath.Join(t.TempDir(), "pages.db"), nil)
	ctx := context.Background()

	_, err := c.Put(ctx, "Imladris", "#REDIRECT [[Rivendell]]")
	require.NoError(t, err)
	_, err = c.Put(ctx, "Karningul", "#REDIRECT [[Rivendell]]")
	require.NoError(t, err)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var blobs int
	require.NoError(t, c.db.QueryRow(`SELECT count(*) FROM blobs`).Scan(&blobs))
	assert.Equal(t, 1, blobs)
}

func TestMemo(t *testing.T) {
	c := openCache(t, filepath.Join(t.TempDir(), "pages.db"), nil)
	ctx := context.Background()

	var calls int
	lookup := func(value string, err error) func(context.Context) (string, error) {
		return func(context.Context) (string, error) {
			calls++
			return value, err
		}
	}

	v, err := c.Memo(ctx, "dbpedia", "http://en.wikipedia.org/wiki/Elrond", lookup("http://dbpedia.org/resource/Elrond", nil))
	require.NoError(t, err)
	assert.Equal(t, "http://dbpedia.org/resource/Elrond", v)

	v, err = c.Memo(ctx, "dbpedia", "http://en.wikipedia.org/wiki/Elrond", lookup("other", nil))
	require.NoError(t, err)
	assert.Equal(t, "http://dbpedia.org/resource/Elrond", v)
	assert.Equal(t, 1, calls)

	// A known miss is memoised as empty.
	v, err = c.Memo(ctx, "dbpedia", "nobody", lookup("", nil))
	require.NoError(t, err)
	assert.Empty(t, v)
	_, err = c.Memo(ctx, "dbpedia", "nobody", lookup("late", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// Errors are not memoised.
	_, err = c.Memo(ctx, "dbpedia", "flaky", lookup("", errors.New("timeout")))
	require.Error(t, err)
	v, err = c.Memo(ctx, "dbpedia", "flaky", lookup("found", nil))
	require.NoError(t, err)
	assert.Equal(t, "found", v)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Minas Tirith", Key("  minas_Tirith "))
	assert.Equal(t, "Minas Tirith", Key("Minas  Tirith"))
	assert.Equal(t, "", Key("   "))
}
