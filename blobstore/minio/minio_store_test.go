package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/hupe1980/corestore/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listServer answers ListObjectsV2 for a fixed set of keys and records the
// prefixes it was asked for.
type listServer struct {
	keys []string

	mu       sync.Mutex
	prefixes []string
}

func (s *listServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Query().Get("list-type") != "2" {
		http.Error(w, "unsupported", http.StatusNotImplemented)
		return
	}

	prefix := r.URL.Query().Get("prefix")
	s.mu.Lock()
	s.prefixes = append(s.prefixes, prefix)
	s.mu.Unlock()

	var contents strings.Builder
	n := 0
	for _, k := range s.keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		n++
		fmt.Fprintf(&contents, "<Contents><Key>%s</Key><Size>1</Size>"+
			"<LastModified>2026-01-02T03:04:05.000Z</LastModified>"+
			"<ETag>&quot;etag&quot;</ETag><StorageClass>STANDARD</StorageClass></Contents>", k)
	}

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`+
		`<Name>backups</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount>`+
		`<MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>%s</ListBucketResult>`,
		prefix, n, contents.String())
}

func newClient(t *testing.T, endpoint string) *minio.Client {
	t.Helper()

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)

	return client
}

func TestValidName(t *testing.T) {
	ctx := context.Background()

	// Invalid names fail before any request is sent.
	store := NewStore(newClient(t, "127.0.0.1:1"), "backups", "root/")

	for _, name := range []string{"", "/abs", "../escape", "a/../../b"} {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, store.Put(ctx, name, []byte("x")), blobstore.ErrInvalidName)

			_, err := store.Create(ctx, name)
			require.ErrorIs(t, err, blobstore.ErrInvalidName)
		})
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()

	srv := &listServer{keys: []string{
		"root/CURRENT",
		"root/manifests/0001.json",
		"root/manifests/0002.json",
		"root/manifests-old/0001.json",
		"root/segments/0001.seg",
		"rootother/manifests/0009.json",
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	store := NewStore(newClient(t, u.Host), "backups", "root/")

	t.Run("All", func(t *testing.T) {
		names, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"CURRENT",
			"manifests-old/0001.json",
			"manifests/0001.json",
			"manifests/0002.json",
			"segments/0001.seg",
		}, names)
	})

	t.Run("Prefix", func(t *testing.T) {
		names, err := store.List(ctx, "manifests/")
		require.NoError(t, err)
		assert.Equal(t, []string{"manifests/0001.json", "manifests/0002.json"}, names)
	})

	t.Run("NoMatch", func(t *testing.T) {
		names, err := store.List(ctx, "snapshots/")
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"root", "root/manifests", "root/snapshots"}, srv.prefixes)
}

func TestWritableBlobAbort(t *testing.T) {
	ctx := context.Background()

	// The upload never gets past reading its first part, so no server is
	// needed.
	store := NewStore(newClient(t, "127.0.0.1:1"), "backups", "root/")

	w, err := store.Create(ctx, "segments/0001.seg")
	require.NoError(t, err)

	require.NoError(t, w.(blobstore.Aborter).Abort(ctx))
	require.NoError(t, w.(blobstore.Aborter).Abort(ctx))

	_, err = w.Write([]byte("late"))
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.Error(t, w.Close())

	t.Run("Canceled", func(t *testing.T) {
		w, err := store.Create(ctx, "segments/0002.seg")
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		// Abort still tears the upload down; the canceled context only
		// stops the wait.
		err = w.(blobstore.Aborter).Abort(cctx)
		if err != nil {
			require.ErrorIs(t, err, context.Canceled)
		}

		_, err = w.Write([]byte("late"))
		require.ErrorIs(t, err, io.ErrClosedPipe)
	})
}
