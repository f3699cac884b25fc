package models

import "time"

// Batch accumulates the outcome of one crawl session. It is append-only:
// records and failures keep processing order and are never removed.
//
// A Batch is owned by a single orchestrator goroutine and is not safe for
// concurrent use.
type Batch struct {
	successes []ProductRecord
	failures  []string
	seen      map[string]struct{}
	closed    bool
}

// NewBatch creates an empty, open batch.
func NewBatch() *Batch {
	return &Batch{seen: make(map[string]struct{})}
}

// AddSuccess appends a successful record.
func (b *Batch) AddSuccess(rec ProductRecord) error {
	if b.closed {
		return ErrBatchClosed
	}
	if _, dup := b.seen[rec.SourceURL]; dup {
		return ErrDuplicateSource
	}
	b.seen[rec.SourceURL] = struct{}{}
	b.successes = append(b.successes, rec)
	return nil
}

// AddFailure appends the raw URL of a failed target.
func (b *Batch) AddFailure(url string) error {
	if b.closed {
		return ErrBatchClosed
	}
	b.failures = append(b.failures, url)
	return nil
}

// Succeeded reports whether url already has a successful record.
func (b *Batch) Succeeded(url string) bool {
	_, ok := b.seen[url]
	return ok
}

// Len returns the number of successes and failures recorded so far.
func (b *Batch) Len() (successes, failures int) {
	return len(b.successes), len(b.failures)
}

// Close seals the batch and returns its persisted form. Calling Close more
// than once returns ErrBatchClosed.
func (b *Batch) Close(at time.Time) (*BatchOutput, error) {
	if b.closed {
		return nil, ErrBatchClosed
	}
	b.closed = true

	products := make([]ProductRecord, len(b.successes))
	copy(products, b.successes)
	failed := make([]string, len(b.failures))
	copy(failed, b.failures)

	return &BatchOutput{
		CrawledAt:      at,
		TotalProducts:  len(products),
		SuccessfulURLs: len(products),
		FailedURLs:     len(failed),
		Products:       products,
		Failed:         failed,
	}, nil
}

// BatchOutput is the closed, persisted form of a Batch.
type BatchOutput struct {
	CrawledAt      time.Time       `json:"crawledAt"`
	TotalProducts  int             `json:"totalProducts"`
	SuccessfulURLs int             `json:"successfulUrls"`
	FailedURLs     int             `json:"failedUrls"`
	Products       []ProductRecord `json:"products"`
	Failed         []string        `json:"failed"`
}
