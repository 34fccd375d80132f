package domain

import "time"

// NotAvailable replaces extracted fields the model left out.
const NotAvailable = "N/A"

// Untitled is used when a fetched page carries no <title>.
const Untitled = "無標題"

// CapturedAtLayout is the civil-time layout persisted for captured_at.
const CapturedAtLayout = "2006-01-02 15:04:05"

// CandidateItem is a URL/title pair discovered from a feed, not yet verified as new.
type CandidateItem struct {
	URL    string
	Title  string
	Source string
}

// Page is the raw document returned by the page fetcher.
type Page struct {
	URL  string
	Body []byte
}

// PageContent is what the page summarizer derives from a fetched page.
type PageContent struct {
	Title string
	Text  string
}

// Extraction is the fixed structured result of the text-understanding call.
type Extraction struct {
	TechCluster    string
	TargetAudience string
	IndustryTrend  string
}

// IntelligenceRecord is one persisted row. Records are immutable once appended.
type IntelligenceRecord struct {
	CapturedAt     time.Time
	SourceURL      string
	ArticleTitle   string
	TechCluster    string
	TargetAudience string
	IndustryTrend  string
}

// Key projects the record onto its two dedup keys.
func (r IntelligenceRecord) Key() RecordKey {
	return RecordKey{URL: r.SourceURL, Title: r.ArticleTitle}
}

// RecordKey holds the natural keys of a stored record.
type RecordKey struct {
	URL   string
	Title string
}

// Digest is the rendered run summary handed to notifiers.
type Digest struct {
	Subject string
	Body    string
	Records []IntelligenceRecord
}
