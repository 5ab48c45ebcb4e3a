// services/archive.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// ObjectUploader stores a blob and returns where it can be fetched from.
type ObjectUploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// ArchiveResult describes one completions snapshot.
type ArchiveResult struct {
	Key     string `json:"key"`
	URL     string `json:"url"`
	Records int    `json:"records"`
}

// CompletionArchiver snapshots every completion record to object storage.
type CompletionArchiver struct {
	Store    CompletionStore
	Uploader ObjectUploader
	Now      func() time.Time
}

func NewCompletionArchiver(store CompletionStore, uploader ObjectUploader) *CompletionArchiver {
	return &CompletionArchiver{Store: store, Uploader: uploader, Now: time.Now}
}

// Enabled reports whether an uploader is configured.
func (a *CompletionArchiver) Enabled() bool {
	return a != nil && a.Uploader != nil
}

// Archive uploads completions/<YYYY-MM-DD>.json.
func (a *CompletionArchiver) Archive(ctx context.Context) (*ArchiveResult, error) {
	if !a.Enabled() {
		return nil, newUserError(ErrUnavailable, "Archive storage is not configured")
	}

	records, _, err := a.Store.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	body, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode completions: %w", err)
	}

	key := fmt.Sprintf("completions/%s.json", a.Now().UTC().Format("2006-01-02"))
	url, err := a.Uploader.Upload(ctx, key, "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	log.Printf("🗄️ [ARCHIVE] %d completion(s) archived to %s", len(records), url)
	return &ArchiveResult{Key: key, URL: url, Records: len(records)}, nil
}
