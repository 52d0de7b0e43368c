package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"lead_bot/internal/extractor"
	"lead_bot/internal/model"
)

// parseFeed reads the Atom search feed.
func parseFeed(_ string, body string) ([]model.Post, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := time.Now().UTC()
	var posts []model.Post
	for _, item := range feed.Items {
		title := strings.Join(strings.Fields(item.Title), " ")
		if title == "" || item.Link == "" {
			continue
		}

		p := model.Post{
			ID:        feedItemID(item),
			Title:     title,
			URL:       item.Link,
			Subreddit: "unknown",
			Author:    "unknown",
		}
		if len(item.Categories) > 0 && item.Categories[0] != "" {
			p.Subreddit = strings.TrimPrefix(item.Categories[0], "r/")
		}
		if len(item.Authors) > 0 && item.Authors[0].Name != "" {
			p.Author = strings.TrimPrefix(strings.TrimPrefix(item.Authors[0].Name, "/u/"), "u/")
		}
		switch {
		case item.PublishedParsed != nil:
			p.CreatedAt = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			p.CreatedAt = item.UpdatedParsed.UTC()
		default:
			p.CreatedAt = now
			p.Synthetic = true
		}

		posts = append(posts, p)
		if len(posts) == extractor.MaxPosts {
			break
		}
	}
	return posts, nil
}

func feedItemID(item *gofeed.Item) string {
	if strings.HasPrefix(item.GUID, "t3_") {
		return strings.TrimPrefix(item.GUID, "t3_")
	}
	if id := extractor.PostIDFromURL(item.Link); id != "" {
		return id
	}
	return item.GUID
}
