// Package search runs one phrase through a cascade of fetch techniques.
//
// Each technique turns (phrase, window) into one or more page URLs. Pages are
// fetched in fresh sessions, parsed, and filtered by the phrase matcher. The
// first page that leaves any posts after filtering ends the cascade. Failures
// are logged and skipped; exhausting every technique yields an empty result.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lead_bot/internal/fetcher"
	"lead_bot/internal/filter"
	"lead_bot/internal/model"
)

// ParseFunc turns a fetched document into raw candidate posts.
type ParseFunc func(pageURL, body string) ([]model.Post, error)

// Technique is one fetch strategy in the cascade.
type Technique struct {
	Name string
	// URLs lists the pages to try, in order.
	URLs   func(phrase string, window model.Window) []string
	Settle time.Duration
	Parse  ParseFunc
}

// Searcher drives the technique cascade.
type Searcher struct {
	renderer   fetcher.Renderer
	techniques []Technique
	log        *slog.Logger
}

// New creates a Searcher that fetches through renderer.
func New(renderer fetcher.Renderer, log *slog.Logger, techniques ...Technique) *Searcher {
	return &Searcher{renderer: renderer, techniques: techniques, log: log}
}

// Techniques returns the names of the configured techniques in cascade order.
func (s *Searcher) Techniques() []string {
	names := make([]string, len(s.techniques))
	for i, t := range s.techniques {
		names[i] = t.Name
	}
	return names
}

// Search returns posts matching phrase from the first technique that finds any.
// The only error it returns is ctx's.
func (s *Searcher) Search(ctx context.Context, phrase string, window model.Window) ([]model.Post, error) {
	for _, t := range s.techniques {
		for _, u := range t.URLs(phrase, window) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			raw, err := s.fetchPage(ctx, t, u)
			if err != nil {
				s.log.Warn("search technique failed", "technique", t.Name, "url", u, "error", err)
				continue
			}

			matched := filter.MatchPosts(raw, phrase)
			s.log.Debug("search page done", "technique", t.Name, "url", u, "candidates", len(raw), "matched", len(matched))
			if len(matched) > 0 {
				s.log.Info("search found posts", "technique", t.Name, "phrase", phrase, "count", len(matched))
				return matched, nil
			}
		}
	}

	s.log.Info("search found nothing", "phrase", phrase, "window", window)
	return nil, nil
}

func (s *Searcher) fetchPage(ctx context.Context, t Technique, u string) ([]model.Post, error) {
	session, err := s.renderer.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.log.Warn("close session", "technique", t.Name, "error", err)
		}
	}()

	page, err := session.Fetch(ctx, fetcher.Request{URL: u, Settle: t.Settle})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	posts, err := t.Parse(page.URL, page.Body)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return posts, nil
}
