package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Strategy locates candidate post elements in a document.
type Strategy interface {
	Name() string
	Candidates(doc *goquery.Document) *goquery.Selection
}

// Selector is a strategy that returns every element matched by a CSS selector.
type Selector struct {
	Label string
	Query string
}

// Name implements Strategy.
func (s Selector) Name() string { return s.Label }

// Candidates implements Strategy.
func (s Selector) Candidates(doc *goquery.Document) *goquery.Selection {
	return doc.Find(s.Query)
}

// Filtered narrows a CSS selector with a predicate.
type Filtered struct {
	Label string
	Query string
	Keep  func(*goquery.Selection) bool
}

// Name implements Strategy.
func (f Filtered) Name() string { return f.Label }

// Candidates implements Strategy.
func (f Filtered) Candidates(doc *goquery.Document) *goquery.Selection {
	return doc.Find(f.Query).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return f.Keep(s)
	})
}

// LinkParents collects the div and article ancestors, up to three levels up,
// of every post or subreddit link.
type LinkParents struct{}

// Name implements Strategy.
func (LinkParents) Name() string { return "link-parents" }

// Candidates implements Strategy.
func (LinkParents) Candidates(doc *goquery.Document) *goquery.Selection {
	seen := make(map[*html.Node]bool)
	var nodes []*html.Node
	doc.Find(`a[href*="/comments/"], a[href*="/r/"]`).Each(func(_ int, a *goquery.Selection) {
		parent := a.Parent()
		for i := 0; i < 3 && parent.Length() > 0; i++ {
			n := parent.Get(0)
			if (n.Data == "div" || n.Data == "article") && !seen[n] {
				seen[n] = true
				nodes = append(nodes, n)
			}
			parent = parent.Parent()
		}
	})
	return doc.FindNodes(nodes...)
}

const (
	commentLink   = `a[href*="/comments/"]`
	subredditLink = `a[href*="/r/"]`
	userLink      = `a[href*="/user/"], a[href*="/u/"]`
	headingLike   = `h1, h2, h3, h4, [class*="title"], [class*="Title"]`
	containerTags = `div, article, section, li`
)

// DefaultStrategies returns the built-in cascade, most specific first.
func DefaultStrategies() []Strategy {
	return []Strategy{
		Selector{
			Label: "data-testid",
			Query: `[data-testid="post-container"], [data-testid="post"], [data-testid="post-content"]`,
		},
		Selector{
			Label: "post-element",
			Query: `shreddit-post`,
		},
		Selector{
			Label: "legacy-thing",
			Query: `div.thing[data-fullname], div.search-result-link`,
		},
		Selector{
			Label: "class-name",
			Query: `div[class*="Post"], div[class*="post"], div[class*="PostContainer"], div[class*="post-container"]`,
		},
		Filtered{
			Label: "link-adjacency",
			Query: containerTags,
			Keep: func(s *goquery.Selection) bool {
				if !hasPostLinks(s) {
					return false
				}
				// Innermost containers only; outer wrappers hold many posts.
				return s.Find(containerTags).FilterFunction(func(_ int, d *goquery.Selection) bool {
					return hasPostLinks(d)
				}).Length() == 0
			},
		},
		Selector{
			Label: "search-result",
			Query: `div[class*="search-result"], div[class*="SearchResult"], div[class*="result"]`,
		},
		Filtered{
			Label: "title-density",
			Query: `div`,
			Keep: func(s *goquery.Selection) bool {
				return s.Find(headingLike).Length() > 0 &&
					s.Find(commentLink).Length() > 0 &&
					textLen(s) > 50
			},
		},
		Filtered{
			Label: "structure",
			Query: `div, article, section`,
			Keep: func(s *goquery.Selection) bool {
				hasLinks := s.Find(subredditLink).Length() > 0 || s.Find(commentLink).Length() > 0
				return hasLinks && textLen(s) > 30 && s.Children().Length() > 2
			},
		},
		LinkParents{},
		Filtered{
			Label: "content-density",
			Query: `div, article, section`,
			Keep: func(s *goquery.Selection) bool {
				return textLen(s) > 100 && s.Find(`a`).Length() > 0 && s.Children().Length() > 3
			},
		},
	}
}

func hasPostLinks(s *goquery.Selection) bool {
	return s.Find(commentLink).Length() > 0 &&
		s.Find(subredditLink).Length() > 0 &&
		s.Find(userLink).Length() > 0
}

func textLen(s *goquery.Selection) int {
	return len(strings.TrimSpace(s.Text()))
}
