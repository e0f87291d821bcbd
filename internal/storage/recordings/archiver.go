// Package recordings copies carrier call recordings into durable blob storage.
package recordings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/voicepartnerai/platform/internal/storage/blob"
)

// ErrNoRecording reports that the carrier had no audio for the requested call.
var ErrNoRecording = errors.New("recordings: no recording available")

type fetcher interface {
	FetchRecording(ctx context.Context, recordingURL string) (io.ReadCloser, error)
}

// Archiver downloads recordings from the telephony carrier and stores them
// under a stable per-call key.
type Archiver struct {
	fetch  fetcher
	store  blob.Store
	logger *slog.Logger
}

func NewArchiver(f fetcher, store blob.Store, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{fetch: f, store: store, logger: logger}
}

// Archive pulls the recording at recordingURL and writes it to blob storage,
// returning the storage key. The key is deterministic per call so redeliveries
// of the same webhook overwrite rather than duplicate.
func (a *Archiver) Archive(ctx context.Context, callSID, recordingURL string) (string, error) {
	if a == nil || a.store == nil {
		return "", errors.New("recordings: archiver not configured")
	}
	if recordingURL == "" {
		return "", ErrNoRecording
	}

	body, err := a.fetch.FetchRecording(ctx, recordingURL)
	if err != nil {
		return "", fmt.Errorf("fetch recording for %s: %w", callSID, err)
	}
	defer body.Close()

	key := Key(callSID)
	info, err := a.store.Put(ctx, key, body, blob.PutOptions{
		ContentType: "audio/mpeg",
		Metadata:    map[string]string{"call-sid": callSID},
	})
	if err != nil {
		return "", fmt.Errorf("store recording for %s: %w", callSID, err)
	}

	a.logger.Info("recording archived",
		slog.String("call_sid", callSID),
		slog.String("key", key),
		slog.Int64("bytes", info.Size),
	)
	return key, nil
}

// Open streams a previously archived recording.
func (a *Archiver) Open(ctx context.Context, callSID string) (io.ReadCloser, blob.ObjectInfo, error) {
	if a == nil || a.store == nil {
		return nil, blob.ObjectInfo{}, errors.New("recordings: archiver not configured")
	}
	return a.store.Get(ctx, Key(callSID))
}

// Delete removes an archived recording, for GDPR erasure requests.
func (a *Archiver) Delete(ctx context.Context, callSID string) error {
	if a == nil || a.store == nil {
		return errors.New("recordings: archiver not configured")
	}
	return a.store.Delete(ctx, Key(callSID))
}

// Key returns the blob key for a call's recording.
func Key(callSID string) string {
	return "recordings/" + callSID
}
