// Package sink persists finished crawl batches.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/lazcrawl/models"
)

// stampLayout is ISO-8601 with microseconds; FileStamp makes it path-safe.
const stampLayout = "2006-01-02T15:04:05.000000Z"

// FileStamp renders t as an ISO-8601 timestamp with ':' and '.' replaced by
// '-', e.g. 2026-03-01T08-00-00-000000Z.
func FileStamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(stampLayout))
}

// JSONFile writes each batch to <dir>/<prefix>_<stamp>.json.
type JSONFile struct {
	dir    string
	prefix string
}

// NewJSONFile creates a JSONFile sink.
func NewJSONFile(dir, prefix string) *JSONFile {
	return &JSONFile{dir: dir, prefix: prefix}
}

// Path returns the file a batch crawled at t is written to.
func (j *JSONFile) Path(t time.Time) string {
	return filepath.Join(j.dir, j.prefix+"_"+FileStamp(t)+".json")
}

// Persist writes out atomically and returns the file path.
func (j *JSONFile) Persist(ctx context.Context, out *models.BatchOutput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(j.dir, 0o750); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	path := j.Path(out.CrawledAt)
	tmp, err := os.CreateTemp(j.dir, ".batch-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode batch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename batch file: %w", err)
	}
	return path, nil
}
