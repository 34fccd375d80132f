package ports

import (
	"context"

	"IntelRadar/internal/domain"
)

// FeedReader discovers candidate items from the configured syndication feeds.
type FeedReader interface {
	Discover(ctx context.Context) []domain.CandidateItem
}

// RecordStore is the append-only history of ingested items.
type RecordStore interface {
	Init(ctx context.Context) error
	Keys(ctx context.Context) ([]domain.RecordKey, error)
	Append(ctx context.Context, record domain.IntelligenceRecord) error
}

// PageFetcher downloads raw page content.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Page, error)
}

// PageSummarizer turns raw HTML into a title and plain text.
type PageSummarizer interface {
	Summarize(page domain.Page) (domain.PageContent, error)
}

// FieldExtractor produces the structured fields for one article.
type FieldExtractor interface {
	Extract(ctx context.Context, title, text string) (domain.Extraction, error)
}

// LanguageModel is a single prompt/response call to a text-understanding service.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Notifier delivers the run digest to a channel (mail, Telegram, etc.).
type Notifier interface {
	Name() string
	PublishDigest(ctx context.Context, digest domain.Digest) error
}
