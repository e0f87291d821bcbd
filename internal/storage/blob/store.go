// Package blob stores call recordings on local disk or S3, with optional
// AES-GCM encryption at rest.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/voicepartnerai/platform/internal/config"
)

// ErrNotFound reports a key that has no stored object.
var ErrNotFound = errors.New("blob: object not found")

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Metadata    map[string]string
	Encrypted   bool
}

// Store persists call recordings and other binary artifacts. Backends must
// store the metadata map alongside the object; the encryption envelope rides
// in it.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// recordingStore wraps a backend with the optional encryption envelope.
type recordingStore struct {
	backend Store
	enc     *encryptor
}

// New builds the store selected by cfg.Storage: "s3" or local disk.
func New(ctx context.Context, cfg config.RecordingsConfig) (Store, error) {
	var backend Store
	var err error
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "s3":
		backend, err = newS3Store(ctx, cfg)
	default:
		backend, err = newLocalStore(cfg)
	}
	if err != nil {
		return nil, err
	}

	enc, err := newEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return backend, nil
	}
	return &recordingStore{backend: backend, enc: enc}, nil
}

func (s *recordingStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error) {
	sealed, plainSize, envelope, err := s.enc.encrypt(body)
	if err != nil {
		return ObjectInfo{}, err
	}
	meta := mergeMetadata(opts.Metadata, envelope)
	info, err := s.backend.Put(ctx, key, sealed, PutOptions{ContentType: opts.ContentType, Metadata: meta})
	if err != nil {
		return ObjectInfo{}, err
	}
	info.Size = plainSize
	info.Metadata = mergeMetadata(info.Metadata, envelope)
	info.Encrypted = true
	return info, nil
}

func (s *recordingStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	reader, info, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	// Objects written before encryption was enabled come back as-is.
	if _, sealed := info.Metadata[encryptionMetadataKey]; !sealed {
		info.Encrypted = false
		return reader, info, nil
	}
	plain, size, err := s.enc.decrypt(reader)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	info.Size = size
	info.Encrypted = true
	return plain, info, nil
}

func (s *recordingStore) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func mergeMetadata(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	merged := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}
