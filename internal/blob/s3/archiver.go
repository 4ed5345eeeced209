package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avetrov/gridbot/internal/domain"
)

// BlobWriter is the narrow upload surface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves old fill-journal rows into object storage. Each run
// serializes every fill older than the cutoff to JSONL, uploads one object,
// and deletes the archived rows from the journal only after the upload
// succeeded.
type Archiver struct {
	writer BlobWriter
	fills  domain.FillStore
	prefix string
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing under the given key prefix.
func NewArchiver(writer BlobWriter, fills domain.FillStore, prefix string, logger *slog.Logger) *Archiver {
	if prefix == "" {
		prefix = "fills"
	}
	return &Archiver{
		writer: writer,
		fills:  fills,
		prefix: prefix,
		logger: logger.With(slog.String("component", "fill_archiver")),
	}
}

// Archive uploads all fills recorded before the cutoff and prunes them from
// the journal. It returns the number of fills archived; zero with no error
// when there was nothing to do.
func (a *Archiver) Archive(ctx context.Context, before time.Time) (int64, error) {
	fills, err := a.fills.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills query: %w", err)
	}
	if len(fills) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(fills)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills marshal: %w", err)
	}

	path := a.archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive fills upload: %w", err)
	}

	deleted, err := a.fills.DeleteBefore(ctx, before)
	if err != nil {
		// The upload stands; only the prune failed. The next run re-archives
		// the same rows, which is harmless duplication, not data loss.
		return int64(len(fills)), fmt.Errorf("s3blob: prune archived fills: %w", err)
	}

	a.logger.InfoContext(ctx, "fills archived",
		slog.String("path", path),
		slog.Int("count", len(fills)),
		slog.Int64("pruned", deleted),
	)
	return int64(len(fills)), nil
}

// archivePath builds the object key: <prefix>/YYYY/MM/fills-<cutoff>.jsonl.
func (a *Archiver) archivePath(before time.Time) string {
	return fmt.Sprintf("%s/%s/fills-%s.jsonl",
		a.prefix,
		before.UTC().Format("2006/01"),
		before.UTC().Format("20060102T150405Z"),
	)
}

// marshalJSONL serializes records to newline-delimited JSON.
func marshalJSONL(fills []domain.Fill) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, f := range fills {
		if err := enc.Encode(f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
