package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"IntelRadar/internal/dedup"
	"IntelRadar/internal/domain"
	"IntelRadar/internal/logging"
	"IntelRadar/internal/ports"
)

// State names the orchestrator phase, logged on every transition.
type State string

const (
	StateIdle                   State = "idle"
	StateDiscovering            State = "discovering"
	StateFilteringAndExtracting State = "filtering_and_extracting"
	StateNotifying              State = "notifying"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Reader        ports.FeedReader
	Store         ports.RecordStore
	Fetcher       ports.PageFetcher
	Summarizer    ports.PageSummarizer
	Extractor     ports.FieldExtractor
	Notifiers     []ports.Notifier
	Logger        *slog.Logger
	Now           func() time.Time
	Location      *time.Location
	SubjectPrefix string
}

// Report counts what one run did. It is never persisted.
type Report struct {
	RunID      string
	Discovered int
	Duplicates int
	Failures   int
	Appended   int
	Notified   int
	Records    []domain.IntelligenceRecord
}

// Pipeline implements the ingestion workflow for a single run.
type Pipeline struct {
	reader        ports.FeedReader
	store         ports.RecordStore
	fetcher       ports.PageFetcher
	summarizer    ports.PageSummarizer
	extractor     ports.FieldExtractor
	notifiers     []ports.Notifier
	logger        *slog.Logger
	now           func() time.Time
	location      *time.Location
	subjectPrefix string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		reader:        deps.Reader,
		store:         deps.Store,
		fetcher:       deps.Fetcher,
		summarizer:    deps.Summarizer,
		extractor:     deps.Extractor,
		notifiers:     deps.Notifiers,
		logger:        deps.Logger,
		now:           deps.Now,
		location:      deps.Location,
		subjectPrefix: deps.SubjectPrefix,
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.location == nil {
		p.location = time.FixedZone("UTC+8", 8*3600)
	}
	return p
}

// Run executes discovery, dedup, fetch, extract, append and notify once.
// Only a store that cannot be opened or scanned aborts the run; every
// source, item and notification failure is logged and absorbed.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	log := p.logger.With("run_id", report.RunID)
	capturedAt := p.now().In(p.location)

	p.transition(log, StateDiscovering)
	var candidates []domain.CandidateItem
	if p.reader != nil {
		candidates = p.reader.Discover(ctx)
	}
	report.Discovered = len(candidates)
	if len(candidates) == 0 {
		log.Info("no candidates discovered")
		p.transition(log, StateIdle)
		return report, nil
	}

	if err := p.store.Init(ctx); err != nil {
		return report, fmt.Errorf("init store: %w", err)
	}
	keys, err := p.store.Keys(ctx)
	if err != nil {
		return report, fmt.Errorf("load stored keys: %w", err)
	}
	filter := dedup.NewFilter(keys)
	urls, titles := filter.Len()
	log.Info("dedup state seeded", "records", len(keys), "urls", urls, "titles", titles)

	p.transition(log, StateFilteringAndExtracting)
	for _, item := range candidates {
		if err := ctx.Err(); err != nil {
			log.Warn("run interrupted", "error", err)
			break
		}

		if verdict := filter.Admit(item); verdict != dedup.Accepted {
			report.Duplicates++
			log.Info("candidate skipped", "reason", verdict.String(), "url", item.URL, "title", item.Title)
			continue
		}

		record, err := p.process(ctx, item, capturedAt)
		if err != nil {
			report.Failures++
			log.Warn("candidate abandoned", "url", item.URL, "error", err)
			continue
		}

		if err := p.store.Append(ctx, record); err != nil {
			report.Failures++
			log.Error("append record", "url", item.URL, "error", err)
			continue
		}
		filter.MarkTitle(record.ArticleTitle)
		report.Records = append(report.Records, record)
		report.Appended++
		log.Info("record appended",
			"title", record.ArticleTitle,
			"tech_cluster", record.TechCluster,
			"industry_trend", record.IndustryTrend)
	}

	p.transition(log, StateNotifying)
	if len(report.Records) == 0 {
		log.Info("nothing new, notification skipped")
	} else {
		report.Notified = p.notify(ctx, log, BuildDigest(report.Records, capturedAt, p.subjectPrefix))
	}

	p.transition(log, StateIdle)
	log.Info("run finished",
		"discovered", report.Discovered,
		"duplicates", report.Duplicates,
		"failures", report.Failures,
		"appended", report.Appended,
		"notified", report.Notified)
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, item domain.CandidateItem, capturedAt time.Time) (domain.IntelligenceRecord, error) {
	page, err := p.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return domain.IntelligenceRecord{}, fmt.Errorf("fetch: %w", err)
	}

	content, err := p.summarizer.Summarize(page)
	if err != nil {
		return domain.IntelligenceRecord{}, fmt.Errorf("summarize: %w", err)
	}

	fields, err := p.extractor.Extract(ctx, content.Title, content.Text)
	if err != nil {
		return domain.IntelligenceRecord{}, fmt.Errorf("extract: %w", err)
	}

	return domain.IntelligenceRecord{
		CapturedAt:     capturedAt,
		SourceURL:      item.URL,
		ArticleTitle:   content.Title,
		TechCluster:    fields.TechCluster,
		TargetAudience: fields.TargetAudience,
		IndustryTrend:  fields.IndustryTrend,
	}, nil
}

// notify attempts every channel and returns how many delivered.
func (p *Pipeline) notify(ctx context.Context, log *slog.Logger, digest domain.Digest) int {
	delivered := 0
	for _, n := range p.notifiers {
		if n == nil {
			continue
		}
		if err := n.PublishDigest(ctx, digest); err != nil {
			log.Warn("notification failed", "channel", n.Name(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (p *Pipeline) transition(log *slog.Logger, s State) {
	log.Debug("pipeline state", "state", string(s))
}
