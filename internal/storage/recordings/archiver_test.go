package recordings

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/voicepartnerai/platform/internal/storage/blob"
)

type fakeFetcher struct {
	payload []byte
	err     error
	lastURL string
	fetched int
}

func (f *fakeFetcher) FetchRecording(_ context.Context, url string) (io.ReadCloser, error) {
	f.fetched++
	f.lastURL = url
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.payload)), nil
}

type memStore struct {
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, key string, body io.Reader, _ blob.PutOptions) (blob.ObjectInfo, error) {
	if m.putErr != nil {
		return blob.ObjectInfo{}, m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return blob.ObjectInfo{}, err
	}
	m.objects[key] = data
	return blob.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, blob.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, blob.ObjectInfo{}, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), blob.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func TestArchiveStoresRecordingUnderCallKey(t *testing.T) {
	fetch := &fakeFetcher{payload: []byte("audio-bytes")}
	store := newMemStore()
	a := NewArchiver(fetch, store, nil)

	key, err := a.Archive(context.Background(), "call_abc", "https://carrier.example/rec/1")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if key != "recordings/call_abc" {
		t.Fatalf("key = %q", key)
	}
	if fetch.lastURL != "https://carrier.example/rec/1" {
		t.Fatalf("fetched url = %q", fetch.lastURL)
	}
	if got := string(store.objects[key]); got != "audio-bytes" {
		t.Fatalf("stored payload = %q", got)
	}
}

func TestArchiveEmptyURLReturnsNoRecording(t *testing.T) {
	a := NewArchiver(&fakeFetcher{}, newMemStore(), nil)
	if _, err := a.Archive(context.Background(), "call_abc", ""); !errors.Is(err, ErrNoRecording) {
		t.Fatalf("err = %v, want ErrNoRecording", err)
	}
}

func TestArchiveFetchFailurePropagates(t *testing.T) {
	fetch := &fakeFetcher{err: errors.New("carrier down")}
	a := NewArchiver(fetch, newMemStore(), nil)
	if _, err := a.Archive(context.Background(), "call_abc", "https://carrier.example/rec/1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenMissingRecording(t *testing.T) {
	a := NewArchiver(&fakeFetcher{}, newMemStore(), nil)
	if _, _, err := a.Open(context.Background(), "call_missing"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("err = %v, want blob.ErrNotFound", err)
	}
}

func TestDeleteRemovesRecording(t *testing.T) {
	fetch := &fakeFetcher{payload: []byte("audio")}
	store := newMemStore()
	a := NewArchiver(fetch, store, nil)

	if _, err := a.Archive(context.Background(), "call_del", "https://carrier.example/rec/2"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := a.Delete(context.Background(), "call_del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.objects[Key("call_del")]; ok {
		t.Fatal("recording still present after delete")
	}
}
