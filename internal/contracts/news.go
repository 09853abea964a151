package contracts

import "time"

// RawItem is one headline as emitted by a collector.
// URL is the natural dedup key; items without URL are never persisted nor analyzed.
type RawItem struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// HasKey reports whether the item can be deduplicated across runs
func (r RawItem) HasKey() bool {
	return r.URL != ""
}

// DedupKey returns the in-batch dedup key: URL, falling back to title
func (r RawItem) DedupKey() string {
	if r.URL != "" {
		return "url:" + r.URL
	}
	return "title:" + r.Title
}

// Titles extracts non-empty titles in order
func Titles(items []RawItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Title != "" {
			out = append(out, item.Title)
		}
	}
	return out
}

// NewsAlert is a keyword hit over a newly ingested item
type NewsAlert struct {
	ID        int64     `json:"id"`
	Keyword   string    `json:"keyword"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
