package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "client is required")

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = New(client, Config{Bucket: " "})
	require.ErrorContains(t, err, "bucket name is required")

	store, err := New(client, Config{Bucket: "epg-snapshots"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "", "application/x-ndjson", nil)
	require.ErrorContains(t, err, "path is required")
}

func TestPrepareSetsIntegrityFields(t *testing.T) {
	t.Parallel()

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "epg-snapshots"})
	require.NoError(t, err)

	data := []byte("hello world")
	w := client.Bucket("epg-snapshots").Object("queues/r1/queue.ndjson").NewWriter(context.Background())
	require.NoError(t, store.prepare(w, "application/x-ndjson", data))

	assert.Equal(t, "application/x-ndjson", w.ContentType)
	assert.True(t, w.SendCRC32C)
	assert.Equal(t, uint32(0xc99465aa), w.CRC32C)
	assert.Equal(t,
		"sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		w.Metadata[DigestMetadataKey])
}

func TestURI(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gs://b/runs/r1/queue.ndjson", URI("b", "runs/r1/queue.ndjson"))
	assert.Equal(t, "gs://b/x", URI("b", "/x"))
}
