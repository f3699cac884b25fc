package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/use-agent/lazcrawl/models"
)

// Markdown writes a human-readable run summary next to the JSON output.
type Markdown struct {
	dir    string
	prefix string
}

// NewMarkdown creates a Markdown summary sink.
func NewMarkdown(dir, prefix string) *Markdown {
	return &Markdown{dir: dir, prefix: prefix}
}

// Persist writes <dir>/<prefix>_<stamp>.md and returns its path.
func (m *Markdown) Persist(ctx context.Context, out *models.BatchOutput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(m.dir, m.prefix+"_"+FileStamp(out.CrawledAt)+".md")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create summary: %w", err)
	}
	defer f.Close()

	if err := writeSummary(markdown.NewMarkdown(f), out); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

func writeSummary(md *markdown.Markdown, out *models.BatchOutput) error {
	md.H1("Crawl Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Crawled At", out.CrawledAt.Format("2006-01-02 15:04:05 MST")},
			{"Products", strconv.Itoa(out.TotalProducts)},
			{"Successful URLs", strconv.Itoa(out.SuccessfulURLs)},
			{"Failed URLs", strconv.Itoa(out.FailedURLs)},
		},
	})
	md.PlainText("")

	if len(out.Products) > 0 {
		md.H2("Products")
		md.PlainText("")
		rows := make([][]string, 0, len(out.Products))
		for _, p := range out.Products {
			rows = append(rows, []string{
				p.Title,
				p.SalePrice,
				p.RegularPrice,
				stock(p.InStock),
				p.CategoryLabel,
				p.SourceURL,
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Title", "Sale", "Regular", "Stock", "Category", "URL"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(out.Failed) > 0 {
		md.H2("Failed URLs")
		md.PlainText("")
		md.BulletList(out.Failed...)
	}
	return md.Build()
}

func stock(in bool) string {
	if in {
		return "in stock"
	}
	return "-"
}
