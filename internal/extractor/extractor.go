// Package extractor turns rendered listing pages into candidate posts.
//
// Pages are tried against an ordered list of strategies. The first strategy
// that finds at least one element is the only one used; later strategies are
// fallbacks and are never merged with earlier results.
package extractor

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"lead_bot/internal/model"
)

const (
	// MaxPosts caps how many posts one page can yield.
	MaxPosts = 25
	// MaxTitleLen rejects elements that swallowed a whole page section.
	MaxTitleLen = 500
)

const (
	titleSelector  = `h1, h2, h3, h4, [class*="title"], [class*="Title"], [class*="heading"]`
	authorSelector = `a[href*="/user/"], a[href*="/u/"], [class*="author"], [class*="Author"], [class*="username"]`
	scoreSelector  = `[data-testid="post-vote-count"], [class*="score"], [class*="Score"], [class*="votes"]`
)

var (
	commentCountRe = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?k?)\s*comments?`)
	countRe        = regexp.MustCompile(`(?i)-?\d[\d,]*(?:\.\d+)?k?`)
	subredditRe    = regexp.MustCompile(`/r/([A-Za-z0-9_]+)`)
)

// Extractor applies a strategy cascade to HTML documents.
type Extractor struct {
	strategies []Strategy
	now        func() time.Time
	log        *slog.Logger
}

// New creates an Extractor. With no strategies the default cascade is used.
func New(log *slog.Logger, strategies ...Strategy) *Extractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Extractor{
		strategies: strategies,
		now:        time.Now,
		log:        log,
	}
}

// Extract parses body and returns up to MaxPosts posts. Relative links are
// resolved against pageURL. An empty result is not an error.
func (e *Extractor) Extract(pageURL, body string) ([]model.Post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(pageURL)

	for _, st := range e.strategies {
		elems := st.Candidates(doc)
		if elems.Length() == 0 {
			continue
		}
		posts := e.collect(elems, base)
		e.log.Debug("extracted posts", "strategy", st.Name(), "elements", elems.Length(), "posts", len(posts))
		return posts, nil
	}

	e.log.Debug("no extraction strategy matched", "url", pageURL)
	return nil, nil
}

func (e *Extractor) collect(elems *goquery.Selection, base *url.URL) []model.Post {
	now := e.now()
	type found struct {
		post model.Post
		node *goquery.Selection
	}
	index := make(map[string]int)
	var all []found

	elems.Each(func(i int, s *goquery.Selection) {
		p, ok := parseElement(s, i, base, now)
		if !ok {
			return
		}
		j, dup := index[p.ID]
		if !dup {
			index[p.ID] = len(all)
			all = append(all, found{post: p, node: s})
			return
		}
		// A wrapper borrows the link of the first post inside it; the post
		// element itself wins.
		if all[j].node.Contains(s.Get(0)) {
			all[j] = found{post: p, node: s}
		}
	})

	posts := make([]model.Post, 0, min(len(all), MaxPosts))
	for _, f := range all {
		if len(posts) == MaxPosts {
			break
		}
		posts = append(posts, f.post)
	}
	if len(posts) == 0 {
		return nil
	}
	return posts
}

func parseElement(s *goquery.Selection, index int, base *url.URL, now time.Time) (model.Post, bool) {
	title := collapse(findTitle(s))
	link := findURL(s, base)
	if title == "" || link == "" || utf8.RuneCountInString(title) > MaxTitleLen {
		return model.Post{}, false
	}

	p := model.Post{
		ID:        findID(s, link, index),
		Title:     title,
		URL:       link,
		Subreddit: findSubreddit(s),
		Author:    findAuthor(s),
		Score:     findScore(s),
		Comments:  findComments(s),
	}
	if ts, ok := findCreated(s); ok {
		p.CreatedAt = ts
	} else {
		p.CreatedAt = now
		p.Synthetic = true
	}
	return p, true
}

func findTitle(s *goquery.Selection) string {
	if v := attr(s, "post-title", "data-title"); v != "" {
		return v
	}
	for _, sel := range []string{`a.search-title, a.title`, titleSelector} {
		h := s.Find(sel).First()
		if h.Length() == 0 {
			continue
		}
		if t := strings.TrimSpace(h.Text()); t != "" {
			return t
		}
	}
	return strings.TrimSpace(s.Find(commentLink).First().Text())
}

func findURL(s *goquery.Selection, base *url.URL) string {
	href := attr(s, "permalink", "data-permalink", "content-href")
	if !strings.Contains(href, "/comments/") {
		href, _ = s.Find(commentLink).First().Attr("href")
	}
	return resolve(base, strings.TrimSpace(href))
}

func findID(s *goquery.Selection, link string, index int) string {
	for _, v := range []string{attr(s, "data-fullname"), attr(s, "id")} {
		if strings.HasPrefix(v, "t3_") {
			return strings.TrimPrefix(v, "t3_")
		}
	}
	if id := PostIDFromURL(link); id != "" {
		return id
	}
	return "post_" + strconv.Itoa(index)
}

// PostIDFromURL returns the path segment after "/comments/", or "".
func PostIDFromURL(link string) string {
	_, rest, ok := strings.Cut(link, "/comments/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	id, _, _ = strings.Cut(id, "?")
	return id
}

func findSubreddit(s *goquery.Selection) string {
	if v := attr(s, "subreddit-prefixed-name", "data-subreddit", "subreddit-name"); v != "" {
		return strings.TrimPrefix(v, "r/")
	}

	links := s.Find(subredditLink)
	var name string
	// Prefer a plain subreddit link over a post link that merely lives under /r/.
	links.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, "/comments/") {
			return true
		}
		name = strings.TrimPrefix(strings.TrimSpace(a.Text()), "r/")
		if name == "" || strings.ContainsAny(name, " \t\n") {
			name = subredditFromHref(href)
		}
		return name == ""
	})
	if name == "" {
		href, _ := links.First().Attr("href")
		name = subredditFromHref(href)
	}
	if name == "" {
		return "unknown"
	}
	return name
}

func subredditFromHref(href string) string {
	if m := subredditRe.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

func findAuthor(s *goquery.Selection) string {
	if v := attr(s, "author", "data-author"); v != "" {
		return v
	}
	if a := s.Find(authorSelector).First(); a.Length() > 0 {
		if name := strings.TrimPrefix(strings.TrimSpace(a.Text()), "u/"); name != "" {
			return name
		}
	}
	return "unknown"
}

func findScore(s *goquery.Selection) int {
	if v := attr(s, "score", "data-score"); v != "" {
		return parseCount(v)
	}
	return parseCount(s.Find(scoreSelector).First().Text())
}

func findComments(s *goquery.Selection) int {
	if v := attr(s, "comment-count", "data-comments-count"); v != "" {
		return parseCount(v)
	}
	if m := commentCountRe.FindStringSubmatch(s.Text()); m != nil {
		return parseCount(m[1])
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05 MST",
}

func findCreated(s *goquery.Selection) (time.Time, bool) {
	if v := attr(s, "data-timestamp"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	}
	candidates := []string{attr(s, "created-timestamp")}
	if v, ok := s.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, v)
	}
	if v, ok := s.Find("faceplate-timeago[ts]").First().Attr("ts"); ok {
		candidates = append(candidates, v)
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// parseCount reads the first number in s, honouring "k" suffixes and thousands separators.
func parseCount(s string) int {
	m := countRe.FindString(s)
	if m == "" {
		return 0
	}
	m = strings.ReplaceAll(strings.ToLower(m), ",", "")
	mult := 1.0
	if strings.HasSuffix(m, "k") {
		mult = 1000
		m = strings.TrimSuffix(m, "k")
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(f * mult))
}

func attr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v, ok := s.Attr(n); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
