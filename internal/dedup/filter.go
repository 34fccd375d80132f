package dedup

import (
	"strings"

	"IntelRadar/internal/domain"
)

// Verdict is the outcome of checking one candidate.
type Verdict int

const (
	// Accepted means neither key has been seen; the URL is now marked.
	Accepted Verdict = iota
	// SeenURL means the candidate URL matches a stored or earlier-accepted URL.
	SeenURL
	// SeenTitle means the candidate title matches a stored or extracted title.
	SeenTitle
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case SeenURL:
		return "seen_url"
	case SeenTitle:
		return "seen_title"
	default:
		return "unknown"
	}
}

// Filter keeps two independent key sets. Either key matching rejects a
// candidate, so distinct articles that share a generic title are dropped too.
// A Filter is not safe for concurrent use.
type Filter struct {
	urls   map[string]struct{}
	titles map[string]struct{}
}

// NewFilter seeds both key sets from the stored records.
func NewFilter(keys []domain.RecordKey) *Filter {
	f := &Filter{
		urls:   make(map[string]struct{}, len(keys)),
		titles: make(map[string]struct{}, len(keys)),
	}
	for _, k := range keys {
		f.add(f.urls, k.URL)
		f.add(f.titles, k.Title)
	}
	return f
}

// Admit classifies the candidate. On acceptance its URL is marked seen
// immediately; the title is only marked later through MarkTitle.
func (f *Filter) Admit(item domain.CandidateItem) Verdict {
	url := strings.TrimSpace(item.URL)
	if _, ok := f.urls[url]; ok {
		return SeenURL
	}
	if _, ok := f.titles[strings.TrimSpace(item.Title)]; ok {
		return SeenTitle
	}
	f.add(f.urls, url)
	return Accepted
}

// MarkTitle records a title taken from a successfully extracted page.
func (f *Filter) MarkTitle(title string) {
	f.add(f.titles, title)
}

// Len reports how many URLs and titles are tracked.
func (f *Filter) Len() (urls, titles int) {
	return len(f.urls), len(f.titles)
}

func (f *Filter) add(set map[string]struct{}, key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	set[key] = struct{}{}
}
