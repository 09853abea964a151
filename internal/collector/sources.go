package collector

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/newsquant/pkg/config"
)

// Feed is one named RSS endpoint
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Sources lists every collector input and the alert keywords
type Sources struct {
	RSS         []Feed   `yaml:"rss"`
	Subreddits  []string `yaml:"subreddits"`
	RedditLimit int      `yaml:"redditLimit"`
	Keywords    []string `yaml:"keywords"`
}

// SourcesFromConfig builds sources from env config, then overlays the YAML file when set
func SourcesFromConfig(cfg config.CollectorsConfig) (Sources, error) {
	src := Sources{
		RSS:         ParseFeeds(cfg.RSSFeeds),
		Subreddits:  cfg.Subreddits,
		RedditLimit: cfg.RedditLimit,
		Keywords:    cfg.Keywords,
	}
	if cfg.SourcesFile == "" {
		return src, nil
	}

	fileSrc, err := LoadSourcesFile(cfg.SourcesFile)
	if err != nil {
		return src, err
	}
	return src.merge(fileSrc), nil
}

// LoadSourcesFile parses a sources YAML file. Unknown fields are rejected.
func LoadSourcesFile(path string) (Sources, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Sources{}, fmt.Errorf("read sources file: %w", err)
	}

	var src Sources
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&src); err != nil {
		return Sources{}, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	for i, f := range src.RSS {
		if f.Name == "" || f.URL == "" {
			return Sources{}, fmt.Errorf("sources file %s: rss[%d] needs name and url", path, i)
		}
	}
	return src, nil
}

// ParseFeeds reads "name=url" entries; a bare url is named after its host
func ParseFeeds(entries []string) []Feed {
	feeds := make([]Feed, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		name, url, ok := strings.Cut(e, "=")
		if !ok || strings.Contains(name, "/") {
			url = e
			name = hostOf(e)
		}
		feeds = append(feeds, Feed{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return feeds
}

func hostOf(u string) string {
	rest := u
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// merge overlays non-empty file values
func (s Sources) merge(file Sources) Sources {
	if len(file.RSS) > 0 {
		s.RSS = file.RSS
	}
	if len(file.Subreddits) > 0 {
		s.Subreddits = file.Subreddits
	}
	if file.RedditLimit > 0 {
		s.RedditLimit = file.RedditLimit
	}
	if len(file.Keywords) > 0 {
		s.Keywords = file.Keywords
	}
	return s
}
