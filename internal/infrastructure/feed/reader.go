package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"IntelRadar/internal/config"
	"IntelRadar/internal/domain"
	"IntelRadar/internal/logging"
	"IntelRadar/internal/ports"
)

// Reader implements FeedReader over RSS/Atom sources.
type Reader struct {
	sources    []config.SourceConfig
	maxPerFeed int
	client     *http.Client
	userAgent  string
	logger     *slog.Logger
}

var _ ports.FeedReader = (*Reader)(nil)

// NewReader wires configured feed sources; client defaults to one with the feed timeout.
func NewReader(cfg config.FeedsConfig, userAgent string, client *http.Client, log *slog.Logger) *Reader {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Reader{
		sources:    cfg.Sources,
		maxPerFeed: cfg.MaxPerFeed,
		client:     client,
		userAgent:  userAgent,
		logger:     log,
	}
}

// Discover reads every source in order. A failing source contributes nothing
// and does not stop the remaining sources.
func (r *Reader) Discover(ctx context.Context) []domain.CandidateItem {
	var collected []domain.CandidateItem
	for _, src := range r.sources {
		items, err := r.read(ctx, src)
		if err != nil {
			r.log().Warn("feed source skipped", "source", src.Name, "url", src.URL, "error", err)
			continue
		}
		r.log().Info("feed source scanned", "source", src.Name, "items", len(items))
		collected = append(collected, items...)
	}
	return collected
}

func (r *Reader) read(ctx context.Context, src config.SourceConfig) ([]domain.CandidateItem, error) {
	parser := gofeed.NewParser()
	parser.Client = r.client
	if r.userAgent != "" {
		parser.UserAgent = r.userAgent
	}

	parsed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	name := src.Name
	if name == "" {
		name = src.URL
	}

	items := make([]domain.CandidateItem, 0, r.maxPerFeed)
	for _, entry := range parsed.Items {
		if len(items) >= r.maxPerFeed {
			break
		}
		if entry == nil {
			continue
		}
		link := strings.TrimSpace(entry.Link)
		if link == "" {
			r.log().Debug("feed entry without link", "source", name, "title", entry.Title)
			continue
		}
		item := domain.CandidateItem{
			URL:    link,
			Title:  strings.TrimSpace(entry.Title),
			Source: name,
		}
		r.log().Info("candidate discovered", "source", name, "title", item.Title)
		items = append(items, item)
	}
	return items, nil
}

func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return logging.Discard()
	}
	return r.logger
}
