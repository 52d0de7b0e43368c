package search

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"lead_bot/internal/extractor"
	"lead_bot/internal/model"
)

// Technique names accepted in Options.Order.
const (
	TechRendered = "rendered"
	TechLegacy   = "legacy"
	TechTopics   = "topics"
	TechJSON     = "json"
	TechFeed     = "feed"
)

// DefaultTopics are the topic-scoped search pages tried by the topics technique.
var DefaultTopics = []string{"programming", "webdev", "freelance", "forhire", "jobs"}

// DefaultOrder is the cascade order when none is configured.
var DefaultOrder = []string{TechRendered, TechLegacy, TechTopics, TechJSON, TechFeed}

// Options configures the built-in techniques.
type Options struct {
	BaseURL       string
	LegacyBaseURL string
	Topics        []string
	Order         []string
	Settle        time.Duration
	LegacySettle  time.Duration
}

func (o *Options) setDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://www.reddit.com"
	}
	if o.LegacyBaseURL == "" {
		o.LegacyBaseURL = "https://old.reddit.com"
	}
	if len(o.Topics) == 0 {
		o.Topics = DefaultTopics
	}
	if len(o.Order) == 0 {
		o.Order = DefaultOrder
	}
	if o.Settle == 0 {
		o.Settle = 5 * time.Second
	}
	if o.LegacySettle == 0 {
		o.LegacySettle = 3 * time.Second
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	o.LegacyBaseURL = strings.TrimRight(o.LegacyBaseURL, "/")
}

// BuildTechniques assembles the cascade described by opts. HTML pages are
// parsed by ex.
func BuildTechniques(opts Options, ex *extractor.Extractor) ([]Technique, error) {
	opts.setDefaults()

	available := map[string]Technique{
		TechRendered: {
			Name:   TechRendered,
			URLs:   single(opts.BaseURL+"/search/", nil),
			Settle: opts.Settle,
			Parse:  ex.Extract,
		},
		TechLegacy: {
			Name:   TechLegacy,
			URLs:   single(opts.LegacyBaseURL+"/search", nil),
			Settle: opts.LegacySettle,
			Parse:  ex.Extract,
		},
		TechTopics: {
			Name:   TechTopics,
			URLs:   topicURLs(opts.BaseURL, opts.Topics),
			Settle: opts.LegacySettle,
			Parse:  ex.Extract,
		},
		TechJSON: {
			Name:  TechJSON,
			URLs:  single(opts.BaseURL+"/search.json", url.Values{"limit": {"25"}}),
			Parse: listingParser(opts.BaseURL),
		},
		TechFeed: {
			Name:  TechFeed,
			URLs:  single(opts.BaseURL+"/search.rss", nil),
			Parse: parseFeed,
		},
	}

	techniques := make([]Technique, 0, len(opts.Order))
	for _, name := range opts.Order {
		t, ok := available[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown search technique %q", name)
		}
		techniques = append(techniques, t)
	}
	return techniques, nil
}

// TimeParam maps a window to the source's time filter. The source has no
// "yesterday" filter, so a week is fetched and the age filter narrows it.
func TimeParam(w model.Window) string {
	switch w {
	case model.WindowHour, model.WindowDay, model.WindowWeek, model.WindowMonth:
		return string(w)
	case model.WindowYesterday:
		return string(model.WindowWeek)
	default:
		return string(model.WindowDay)
	}
}

func query(phrase string, w model.Window, extra url.Values) string {
	v := url.Values{
		"q":    {phrase},
		"t":    {TimeParam(w)},
		"sort": {"new"},
	}
	for k, vals := range extra {
		v[k] = vals
	}
	return v.Encode()
}

func single(endpoint string, extra url.Values) func(string, model.Window) []string {
	return func(phrase string, w model.Window) []string {
		return []string{endpoint + "?" + query(phrase, w, extra)}
	}
}

func topicURLs(base string, topics []string) func(string, model.Window) []string {
	return func(phrase string, w model.Window) []string {
		urls := make([]string, 0, len(topics))
		for _, topic := range topics {
			endpoint := fmt.Sprintf("%s/r/%s/search/", base, url.PathEscape(topic))
			urls = append(urls, endpoint+"?"+query(phrase, w, url.Values{"restrict_sr": {"1"}}))
		}
		return urls
	}
}
