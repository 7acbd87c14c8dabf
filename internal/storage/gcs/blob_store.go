// Package gcs uploads queue snapshots to Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"hash/crc32"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/epg-queue/internal/hash/sha256"
)

// DigestMetadataKey names the object metadata entry holding the snapshot digest, so
// workers can check a snapshot from its attributes before downloading it.
const DigestMetadataKey = "sha256"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// BlobStore writes snapshots to a configured GCS bucket. Snapshot keys carry the run
// id, so objects are created once and never overwritten.
type BlobStore struct {
	client *storage.Client
	bucket string
	hasher *sha256.Hasher
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		hasher: sha256.New(),
	}, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI. The upload
// carries a CRC32C checksum, so GCS rejects a corrupted body, and fails when an
// object already exists at path.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	obj := s.client.Bucket(s.bucket).Object(path).If(storage.Conditions{DoesNotExist: true})
	writer := obj.NewWriter(ctx)
	if err := s.prepare(writer, contentType, data); err != nil {
		return "", err
	}
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write snapshot %s: %w (close writer: %v)", path, err, closeErr)
		}
		return "", fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", path, err)
	}
	if attrs := writer.Attrs(); attrs != nil && attrs.Size != int64(len(data)) {
		return "", fmt.Errorf("upload snapshot %s: stored %d bytes, sent %d", path, attrs.Size, len(data))
	}
	return URI(s.bucket, path), nil
}

func (s *BlobStore) prepare(w *storage.Writer, contentType string, data []byte) error {
	digest, err := s.hasher.Hash(data)
	if err != nil {
		return fmt.Errorf("hash snapshot: %w", err)
	}
	if contentType != "" {
		w.ContentType = contentType
	}
	w.CRC32C = crc32.Checksum(data, castagnoli)
	w.SendCRC32C = true
	w.Metadata = map[string]string{DigestMetadataKey: digest}
	return nil
}

// URI formats the gs:// location of an object.
func URI(bucket, path string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, strings.TrimPrefix(path, "/"))
}
