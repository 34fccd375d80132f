package page

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"IntelRadar/internal/domain"
	"IntelRadar/internal/ports"
)

// Summarizer derives a title and plain text from raw HTML.
type Summarizer struct{}

var _ ports.PageSummarizer = (*Summarizer)(nil)

// NewSummarizer returns a stateless summarizer.
func NewSummarizer() *Summarizer {
	return &Summarizer{}
}

// Summarize takes the <title> as-is and prefers readability's main content,
// falling back to the whole document text when readability yields nothing.
func (s *Summarizer) Summarize(page domain.Page) (domain.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return domain.PageContent{}, fmt.Errorf("parse document: %w", err)
	}

	title := collapse(doc.Find("title").First().Text())
	if title == "" {
		title = domain.Untitled
	}

	text := mainText(page)
	if text == "" {
		doc.Find("script, style, noscript, template").Remove()
		text = collapse(doc.Text())
	}
	if text == "" {
		return domain.PageContent{}, fmt.Errorf("page %s has no readable text", page.URL)
	}

	return domain.PageContent{Title: title, Text: text}, nil
}

func mainText(page domain.Page) string {
	pageURL, err := url.Parse(page.URL)
	if err != nil || !pageURL.IsAbs() {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		return ""
	}
	return collapse(article.TextContent)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
