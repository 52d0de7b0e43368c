package search

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"lead_bot/internal/extractor"
	"lead_bot/internal/model"
)

type listing struct {
	Data struct {
		Children []struct {
			Data listingPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type listingPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// listingParser decodes the structured search endpoint. Permalinks are
// joined to base.
func listingParser(base string) ParseFunc {
	return func(_ string, body string) ([]model.Post, error) {
		raw, err := unwrapJSON(body)
		if err != nil {
			return nil, err
		}

		var l listing
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}

		posts := make([]model.Post, 0, len(l.Data.Children))
		for _, c := range l.Data.Children {
			d := c.Data
			title := strings.Join(strings.Fields(d.Title), " ")
			if d.ID == "" || title == "" {
				continue
			}
			sec, frac := math.Modf(d.CreatedUTC)
			posts = append(posts, model.Post{
				ID:        d.ID,
				Title:     title,
				URL:       base + d.Permalink,
				Subreddit: d.Subreddit,
				Author:    d.Author,
				Score:     d.Score,
				Comments:  d.NumComments,
				CreatedAt: time.Unix(int64(sec), int64(frac*1e9)).UTC(),
			})
			if len(posts) == extractor.MaxPosts {
				break
			}
		}
		return posts, nil
	}
}

// unwrapJSON strips the HTML shell a browser puts around a JSON document.
func unwrapJSON(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "<") {
		return trimmed, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return "", fmt.Errorf("parse json wrapper: %w", err)
	}
	if pre := doc.Find("pre").First(); pre.Length() > 0 {
		return pre.Text(), nil
	}
	return strings.TrimSpace(doc.Find("body").Text()), nil
}
