package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Strategy pulls one value out of a parsed page. ok is false when the
// strategy found nothing usable, letting the next one in a chain run.
type Strategy[T any] func(doc *goquery.Document) (value T, ok bool)

// FirstMatch evaluates chain in order and returns the first usable value.
func FirstMatch[T any](doc *goquery.Document, chain ...Strategy[T]) (T, bool) {
	for _, s := range chain {
		if v, ok := s(doc); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// TextOf matches the first element for selector and accepts its text when
// it is longer than minLen characters.
func TextOf(selector string, minLen int) Strategy[string] {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		text := cleanText(sel.Text())
		if text == "" || utf8.RuneCountInString(text) <= minLen {
			return "", false
		}
		return text, true
	}
}

// cleanText trims and collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
