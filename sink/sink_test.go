package sink

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/lazcrawl/models"
)

var crawledAt = time.Date(2026, 3, 1, 8, 30, 15, 123456000, time.UTC)

func sampleBatch() *models.BatchOutput {
	b := models.NewBatch()
	_ = b.AddSuccess(models.ProductRecord{
		SourceURL:    "https://www.lazada.vn/products/a-i1.html",
		Title:        "Áo thun <cotton> & co",
		SalePrice:    "271043",
		RegularPrice: "548772",
		InStock:      true,
		CrawledAt:    crawledAt,
	})
	_ = b.AddFailure("https://www.lazada.vn/products/b-i2.html")
	out, _ := b.Close(crawledAt)
	return out
}

func TestFileStamp(t *testing.T) {
	assert.Equal(t, "2026-03-01T08-30-15-123456Z", FileStamp(crawledAt))
	assert.NotContains(t, FileStamp(time.Now()), ":")
}

func TestJSONFile_Persist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := NewJSONFile(dir, "lazada_products")

	path, err := s.Persist(context.Background(), sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lazada_products_2026-03-01T08-30-15-123456Z.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Áo thun <cotton> & co", "no HTML or unicode escaping")
	assert.Contains(t, string(raw), "\n  \"totalProducts\": 1")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, 1, doc["totalProducts"])
	assert.EqualValues(t, 1, doc["successfulUrls"])
	assert.EqualValues(t, 1, doc["failedUrls"])
	assert.Len(t, doc["products"], 1)
	assert.Equal(t, []any{"https://www.lazada.vn/products/b-i2.html"}, doc["failed"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be gone")
}

func TestJSONFile_EmptyBatchHasArrays(t *testing.T) {
	out, err := models.NewBatch().Close(crawledAt)
	require.NoError(t, err)

	path, err := NewJSONFile(t.TempDir(), "p").Persist(context.Background(), out)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"products": []`)
	assert.Contains(t, string(raw), `"failed": []`)
}

func TestMarkdown_Persist(t *testing.T) {
	dir := t.TempDir()
	path, err := NewMarkdown(dir, "lazada_products").Persist(context.Background(), sampleBatch())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".md"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "# Crawl Summary")
	assert.Contains(t, text, "## Failed URLs")
	assert.Contains(t, text, "https://www.lazada.vn/products/b-i2.html")
	assert.Contains(t, text, "271043")
}

func TestSQLite_Persist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "lazcrawl.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	id, err := s.Insert(ctx, sampleBatch())
	require.NoError(t, err)

	n, err := s.CountProducts(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	failed, err := s.FailedURLs(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.lazada.vn/products/b-i2.html"}, failed)

	loc, err := s.Persist(ctx, sampleBatch())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc, path+"#batch="))
}

type stubSink struct {
	loc   string
	err   error
	calls int
}

func (s *stubSink) Persist(context.Context, *models.BatchOutput) (string, error) {
	s.calls++
	return s.loc, s.err
}

func TestMulti(t *testing.T) {
	primary := &stubSink{loc: "primary.json"}
	broken := &stubSink{err: errors.New("boom")}
	extra := &stubSink{loc: "extra.md"}

	loc, err := NewMulti(primary, broken, extra).Persist(context.Background(), sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, "primary.json", loc)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, extra.calls)

	failing := &stubSink{err: errors.New("disk full")}
	after := &stubSink{}
	_, err = NewMulti(failing, after).Persist(context.Background(), sampleBatch())
	assert.Error(t, err)
	assert.Zero(t, after.calls, "secondaries are skipped when the primary fails")
}
