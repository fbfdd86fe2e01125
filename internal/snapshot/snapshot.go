// Package snapshot archives every stored session document to a blob store and
// restores archives into a document store.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fieldparty/internal/blob"
	"fieldparty/pkg/domain"
)

// Format tags archives written by Export.
const Format = "fieldparty.snapshot/v1"

// Prefix is the key prefix used by DefaultKey and List.
const Prefix = "snapshots/"

// Archive is the JSON body of one snapshot. Payloads are kept as the raw
// encoded session bytes so restore does not depend on the session codec.
type Archive struct {
	Format    string            `json:"format"`
	CreatedAt time.Time         `json:"created_at"`
	Codec     string            `json:"codec,omitempty"`
	Documents []domain.Document `json:"documents"`
}

// ImportResult counts what Import did.
type ImportResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// DefaultKey names an archive after its creation time.
func DefaultKey(now time.Time) string {
	return Prefix + now.UTC().Format("20060102T150405.000000000Z") + ".json"
}

// Export writes all documents in docs to key. codecName is recorded for operators.
func Export(ctx context.Context, docs domain.DocumentStore, blobs blob.Store, key, codecName string, now time.Time) (blob.Info, Archive, error) {
	all, err := docs.List(ctx, "")
	if err != nil {
		return blob.Info{}, Archive{}, fmt.Errorf("list documents: %w", err)
	}
	archive := Archive{Format: Format, CreatedAt: now.UTC(), Codec: codecName, Documents: all}
	raw, err := json.Marshal(archive)
	if err != nil {
		return blob.Info{}, Archive{}, fmt.Errorf("encode snapshot: %w", err)
	}
	info, err := blobs.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"format":    Format,
			"documents": strconv.Itoa(len(all)),
		},
	})
	if err != nil {
		return blob.Info{}, Archive{}, fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return info, archive, nil
}

// Load reads and validates the archive at key.
func Load(ctx context.Context, blobs blob.Store, key string) (Archive, error) {
	_, rc, err := blobs.Get(ctx, key)
	if err != nil {
		return Archive{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	defer rc.Close()
	var archive Archive
	if err := json.NewDecoder(rc).Decode(&archive); err != nil {
		return Archive{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if archive.Format != Format {
		return Archive{}, fmt.Errorf("snapshot %s: unsupported format %q", key, archive.Format)
	}
	for i, doc := range archive.Documents {
		if doc.ID == "" || doc.Kind == "" {
			return Archive{}, fmt.Errorf("snapshot %s: document %d missing id or kind", key, i)
		}
	}
	return archive, nil
}

// Import restores the archive at key into docs, keeping ids and versions.
// Ids already present in docs are left untouched and counted as skipped.
func Import(ctx context.Context, docs domain.DocumentStore, blobs blob.Store, key string) (ImportResult, error) {
	archive, err := Load(ctx, blobs, key)
	if err != nil {
		return ImportResult{}, err
	}
	var res ImportResult
	for _, doc := range archive.Documents {
		if _, err := docs.Create(ctx, doc); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("restore %s %s: %w", doc.Kind, doc.ID, err)
		}
		res.Restored++
	}
	return res, nil
}

// List returns archives under Prefix, oldest first.
func List(ctx context.Context, blobs blob.Store) ([]blob.Info, error) {
	return blobs.List(ctx, Prefix)
}
