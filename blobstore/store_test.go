package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"Memory": NewMemoryStore(),
		"Local":  NewLocalStore(t.TempDir()),
	}
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	data := []byte("hello world, this is a backup frame")

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			w, err := store.Create(ctx, "backups/0001.data")
			require.NoError(t, err)

			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)

			// Not visible until closed.
			_, err = store.Open(ctx, "backups/0001.data")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, w.Sync())
			require.NoError(t, w.Close())
			_, err = w.Write(data)
			require.Error(t, err)

			blob, err := store.Open(ctx, "backups/0001.data")
			require.NoError(t, err)
			defer blob.Close()
			require.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err = blob.ReadAt(ctx, buf, 6)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
			assert.Equal(t, "world", string(buf))

			n, err = blob.ReadAt(ctx, make([]byte, 100), 30)
			assert.Equal(t, len(data)-30, n)
			assert.ErrorIs(t, err, io.EOF)

			r, err := blob.ReadRange(ctx, 13, 4)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, "this", string(got))

			r, err = blob.ReadRange(ctx, 30, 100)
			require.NoError(t, err)
			got, err = io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data[30:], got)
		})
	}
}

func TestStore_PutListDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "b/2.json", []byte("{}")))
			require.NoError(t, store.Put(ctx, "b/1.json", []byte("{}")))
			require.NoError(t, store.Put(ctx, CurrentName, []byte("b/2.json")))

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{CurrentName, "b/1.json", "b/2.json"}, all)

			prefixed, err := store.List(ctx, "b/")
			require.NoError(t, err)
			assert.Equal(t, []string{"b/1.json", "b/2.json"}, prefixed)

			got, err := ReadAll(ctx, store, CurrentName)
			require.NoError(t, err)
			assert.Equal(t, "b/2.json", string(got))

			// Overwrite replaces atomically.
			require.NoError(t, store.Put(ctx, CurrentName, []byte("b/1.json")))
			got, err = ReadAll(ctx, store, CurrentName)
			require.NoError(t, err)
			assert.Equal(t, "b/1.json", string(got))

			require.NoError(t, store.Delete(ctx, "b/1.json"))
			require.NoError(t, store.Delete(ctx, "b/1.json"))
			_, err = store.Open(ctx, "b/1.json")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_EmptyBlob(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "empty", nil))
			got, err := ReadAll(ctx, store, "empty")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_Abort(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			w, err := store.Create(ctx, "partial")
			require.NoError(t, err)
			_, err = w.Write([]byte("half"))
			require.NoError(t, err)
			require.NoError(t, Abort(ctx, w))

			_, err = store.Open(ctx, "partial")
			assert.ErrorIs(t, err, ErrNotFound)

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestStore_InvalidName(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", "../escape", "/abs"} {
				assert.ErrorIs(t, store.Put(ctx, bad, nil), ErrInvalidName, bad)
			}
		})
	}
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Open(ctx, "x")
			assert.ErrorIs(t, err, context.Canceled)
			_, err = store.Create(ctx, "x")
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestLocalStore_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	require.NoError(t, store.Put(ctx, "nested/blob", []byte("x")))
	_, err := os.Stat(filepath.Join(dir, "nested", "blob"))
	require.NoError(t, err)

	// Leftover temporary files are not listed.
	require.NoError(t, os.WriteFile(filepath.Join(dir, tmpPrefix+"junk"), []byte("x"), 0o600))
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"nested/blob"}, names)

	blob, err := store.Open(ctx, "nested/blob")
	require.NoError(t, err)
	m, ok := blob.(Mappable)
	require.True(t, ok)
	b, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))
	require.NoError(t, blob.Close())
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
