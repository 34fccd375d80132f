package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"IntelRadar/internal/domain"
	"IntelRadar/internal/infrastructure/storage"
	"IntelRadar/internal/ports"
)

type fakeReader struct {
	items []domain.CandidateItem
	calls int
}

func (f *fakeReader) Discover(context.Context) []domain.CandidateItem {
	f.calls++
	return f.items
}

type memoryStore struct {
	records  []domain.IntelligenceRecord
	initErr  error
	keysErr  error
	failURL  string
	inits    int
	appended int
}

func (m *memoryStore) Init(context.Context) error {
	m.inits++
	return m.initErr
}

func (m *memoryStore) Keys(context.Context) ([]domain.RecordKey, error) {
	if m.keysErr != nil {
		return nil, m.keysErr
	}
	keys := make([]domain.RecordKey, 0, len(m.records))
	for _, r := range m.records {
		keys = append(keys, r.Key())
	}
	return keys, nil
}

func (m *memoryStore) Append(_ context.Context, r domain.IntelligenceRecord) error {
	if r.SourceURL == m.failURL {
		return errors.New("disk full")
	}
	m.records = append(m.records, r)
	m.appended++
	return nil
}

// fakeFetcher serves "<title>|<text>" bodies keyed by URL.
type fakeFetcher struct {
	pages   map[string]string
	fail    map[string]bool
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (domain.Page, error) {
	f.fetched = append(f.fetched, url)
	if f.fail[url] {
		return domain.Page{}, errors.New("page returned 503 Service Unavailable")
	}
	body, ok := f.pages[url]
	if !ok {
		return domain.Page{}, errors.New("page returned 404 Not Found")
	}
	return domain.Page{URL: url, Body: []byte(body)}, nil
}

type splitSummarizer struct{}

func (splitSummarizer) Summarize(p domain.Page) (domain.PageContent, error) {
	title, text, _ := strings.Cut(string(p.Body), "|")
	return domain.PageContent{Title: title, Text: text}, nil
}

type fakeExtractor struct {
	failTitles map[string]bool
	calls      int
}

func (f *fakeExtractor) Extract(_ context.Context, title, _ string) (domain.Extraction, error) {
	f.calls++
	if f.failTitles[title] {
		return domain.Extraction{}, errors.New("extraction timed out after 30s")
	}
	return domain.Extraction{TechCluster: "先進封裝", TargetAudience: "研發工程師", IndustryTrend: "產能吃緊"}, nil
}

type fakeNotifier struct {
	name    string
	err     error
	digests []domain.Digest
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) PublishDigest(_ context.Context, d domain.Digest) error {
	f.digests = append(f.digests, d)
	return f.err
}

var fixedNow = func() time.Time { return time.Date(2025, 3, 3, 23, 30, 0, 0, time.UTC) }

type harness struct {
	reader    *fakeReader
	store     *memoryStore
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	notifier  *fakeNotifier
}

func newHarness(items ...domain.CandidateItem) *harness {
	return &harness{
		reader:    &fakeReader{items: items},
		store:     &memoryStore{},
		fetcher:   &fakeFetcher{pages: map[string]string{}, fail: map[string]bool{}},
		extractor: &fakeExtractor{failTitles: map[string]bool{}},
		notifier:  &fakeNotifier{name: "fake"},
	}
}

func (h *harness) pipeline() *Pipeline {
	return NewPipeline(PipelineDeps{
		Reader:     h.reader,
		Store:      h.store,
		Fetcher:    h.fetcher,
		Summarizer: splitSummarizer{},
		Extractor:  h.extractor,
		Notifiers:  []ports.Notifier{h.notifier},
		Now:        fixedNow,
	})
}

func TestRunAppendsAndNotifies(t *testing.T) {
	h := newHarness(
		domain.CandidateItem{URL: "https://a.example/1", Title: "Feed title one"},
		domain.CandidateItem{URL: "https://b.example/2", Title: "Feed title two"},
	)
	h.fetcher.pages["https://a.example/1"] = "Page one|body"
	h.fetcher.pages["https://b.example/2"] = "Page two|body"

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Discovered)
	require.Equal(t, 2, report.Appended)
	require.Equal(t, 1, report.Notified)
	require.NotEmpty(t, report.RunID)

	require.Len(t, h.store.records, 2)
	first := h.store.records[0]
	require.Equal(t, "https://a.example/1", first.SourceURL)
	require.Equal(t, "Page one", first.ArticleTitle)
	require.Equal(t, "2025-03-04 07:30:00", first.CapturedAt.Format(domain.CapturedAtLayout))
	require.Equal(t, first.CapturedAt, h.store.records[1].CapturedAt)

	require.Len(t, h.notifier.digests, 1)
	digest := h.notifier.digests[0]
	require.Equal(t, "【半導體監測報】自動掃描完成 - 2025-03-04", digest.Subject)
	require.Len(t, digest.Records, 2)
	require.Contains(t, digest.Body, "Page two")
	require.Contains(t, digest.Body, "https://b.example/2")
}

func TestRunEmptyDiscoveryTouchesNothing(t *testing.T) {
	h := newHarness()

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{RunID: report.RunID}, report)
	require.Equal(t, 1, h.reader.calls)
	require.Zero(t, h.store.inits)
	require.Empty(t, h.fetcher.fetched)
	require.Empty(t, h.notifier.digests)
}

func TestRunRejectsStoredURLWithNewTitle(t *testing.T) {
	h := newHarness(domain.CandidateItem{URL: "https://a.example/x", Title: "Rewritten headline"})
	h.store.records = []domain.IntelligenceRecord{{SourceURL: "https://a.example/x", ArticleTitle: "Original headline"}}
	h.fetcher.pages["https://a.example/x"] = "Rewritten headline|body"

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Duplicates)
	require.Empty(t, h.fetcher.fetched)
	require.Len(t, h.store.records, 1)
	require.Empty(t, h.notifier.digests)
}

func TestRunRejectsStoredTitleWithNewURL(t *testing.T) {
	h := newHarness(domain.CandidateItem{URL: "https://mirror.example/x", Title: "Original headline"})
	h.store.records = []domain.IntelligenceRecord{{SourceURL: "https://a.example/x", ArticleTitle: "Original headline"}}

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Duplicates)
	require.Empty(t, h.fetcher.fetched)
}

func TestRunRejectsRepeatedTitleWithinRun(t *testing.T) {
	h := newHarness(
		domain.CandidateItem{URL: "https://a.example/1", Title: "Foundry Capacity Update"},
		domain.CandidateItem{URL: "https://b.example/2", Title: "Foundry Capacity Update"},
	)
	h.fetcher.pages["https://a.example/1"] = "Foundry Capacity Update|body"
	h.fetcher.pages["https://b.example/2"] = "Foundry Capacity Update|body"

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Appended)
	require.Equal(t, 1, report.Duplicates)
	require.Equal(t, []string{"https://a.example/1"}, h.fetcher.fetched)
}

func TestRunRejectsRepeatedURLAcrossSources(t *testing.T) {
	h := newHarness(
		domain.CandidateItem{URL: "https://a.example/1", Title: "From feed A"},
		domain.CandidateItem{URL: "https://a.example/1", Title: "From feed B"},
	)
	h.fetcher.fail["https://a.example/1"] = true

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failures)
	require.Equal(t, 1, report.Duplicates)
	require.Equal(t, []string{"https://a.example/1"}, h.fetcher.fetched)
}

func TestRunMarksExtractedTitleNotFeedTitle(t *testing.T) {
	h := newHarness(
		domain.CandidateItem{URL: "https://a.example/1", Title: "Foundry Capacity Update"},
		domain.CandidateItem{URL: "https://b.example/2", Title: "Foundry Capacity Update"},
		domain.CandidateItem{URL: "https://c.example/3", Title: "TSMC raises CoWoS output"},
	)
	h.fetcher.pages["https://a.example/1"] = "TSMC raises CoWoS output|body"
	h.fetcher.pages["https://b.example/2"] = "Foundry Capacity Update|body"
	h.fetcher.pages["https://c.example/3"] = "Mirror|body"

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Appended)
	require.Equal(t, 1, report.Duplicates)
	require.Equal(t, []string{"https://a.example/1", "https://b.example/2"}, h.fetcher.fetched)
	require.Equal(t, "TSMC raises CoWoS output", h.store.records[0].ArticleTitle)
	require.Equal(t, "Foundry Capacity Update", h.store.records[1].ArticleTitle)
}

func TestRunFailuresPersistNothing(t *testing.T) {
	h := newHarness(
		domain.CandidateItem{URL: "https://a.example/down", Title: "Down"},
		domain.CandidateItem{URL: "https://a.example/slow", Title: "Slow"},
		domain.CandidateItem{URL: "https://a.example/ok", Title: "Ok"},
	)
	h.fetcher.fail["https://a.example/down"] = true
	h.fetcher.pages["https://a.example/slow"] = "Slow page|body"
	h.fetcher.pages["https://a.example/ok"] = "Ok page|body"
	h.extractor.failTitles["Slow page"] = true

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Failures)
	require.Equal(t, 1, report.Appended)
	require.Len(t, h.store.records, 1)
	require.Equal(t, "https://a.example/ok", h.store.records[0].SourceURL)
	require.Len(t, h.notifier.digests[0].Records, 1)
}

func TestRunFailedTitleIsNotMarked(t *testing.T) {
	h := newHarness(
		domain.CandidateItem{URL: "https://a.example/1", Title: "Shared headline"},
		domain.CandidateItem{URL: "https://b.example/2", Title: "Shared headline"},
	)
	h.fetcher.fail["https://a.example/1"] = true
	h.fetcher.pages["https://b.example/2"] = "Shared headline|body"

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failures)
	require.Equal(t, 1, report.Appended)
	require.Equal(t, "https://b.example/2", h.store.records[0].SourceURL)
}

func TestRunAppendFailureIsItemLevel(t *testing.T) {
	h := newHarness(
		domain.CandidateItem{URL: "https://a.example/1", Title: "One"},
		domain.CandidateItem{URL: "https://a.example/2", Title: "Two"},
	)
	h.fetcher.pages["https://a.example/1"] = "One|body"
	h.fetcher.pages["https://a.example/2"] = "Two|body"
	h.store.failURL = "https://a.example/1"

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failures)
	require.Equal(t, 1, report.Appended)
	require.Len(t, h.notifier.digests[0].Records, 1)
}

func TestRunAllFailedSkipsNotification(t *testing.T) {
	h := newHarness(domain.CandidateItem{URL: "https://a.example/1", Title: "One"})

	report, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failures)
	require.Zero(t, report.Notified)
	require.Empty(t, h.notifier.digests)
}

func TestRunNotifierFailureDoesNotFailRun(t *testing.T) {
	h := newHarness(domain.CandidateItem{URL: "https://a.example/1", Title: "One"})
	h.fetcher.pages["https://a.example/1"] = "One|body"
	h.notifier.err = errors.New("535 authentication failed")
	backup := &fakeNotifier{name: "backup"}

	p := h.pipeline()
	p.notifiers = append(p.notifiers, backup)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Appended)
	require.Equal(t, 1, report.Notified)
	require.Len(t, h.notifier.digests, 1)
	require.Len(t, backup.digests, 1)
	require.Len(t, h.store.records, 1)
}

func TestRunStoreFailureAborts(t *testing.T) {
	h := newHarness(domain.CandidateItem{URL: "https://a.example/1", Title: "One"})
	h.store.keysErr = errors.New("permission denied")

	_, err := h.pipeline().Run(context.Background())
	require.ErrorContains(t, err, "permission denied")
	require.Empty(t, h.fetcher.fetched)
}

func TestRunIsIdempotentOnCSVStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewCSVStore(filepath.Join(t.TempDir(), "semi_market_data.csv"))

	h := newHarness(
		domain.CandidateItem{URL: "https://a.example/1", Title: "One"},
		domain.CandidateItem{URL: "https://a.example/2", Title: "Two"},
	)
	h.fetcher.pages["https://a.example/1"] = "One|body"
	h.fetcher.pages["https://a.example/2"] = "Two|body"

	p := NewPipeline(PipelineDeps{
		Reader:     h.reader,
		Store:      store,
		Fetcher:    h.fetcher,
		Summarizer: splitSummarizer{},
		Extractor:  h.extractor,
		Notifiers:  []ports.Notifier{h.notifier},
		Now:        fixedNow,
	})

	first, err := p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, first.Appended)

	before, err := store.Keys(ctx)
	require.NoError(t, err)

	second, err := p.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, second.Appended)
	require.Equal(t, 2, second.Duplicates)
	require.Len(t, h.notifier.digests, 1)
	require.NotEqual(t, first.RunID, second.RunID)

	after, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}
