// Package filter decides which scraped posts are worth delivering.
//
// Phrase matching is strict and literal: no stemming, no fuzzy distance, no
// synonyms. A phrase either appears in a title as written or it does not.
package filter

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"lead_bot/internal/model"
)

// Match reports whether title satisfies phrase.
//
// Both inputs are case-folded and whitespace runs collapse to one space.
// A single-word phrase must equal one whole token of the title. A multi-word
// phrase must appear as a contiguous token sequence, or as a literal
// substring of the normalized title.
func Match(title, phrase string) bool {
	p := normalize(phrase)
	t := normalize(title)
	if p == "" || t == "" {
		return false
	}

	titleWords := strings.Split(t, " ")
	phraseWords := strings.Split(p, " ")

	if len(phraseWords) == 1 {
		return slices.Contains(titleWords, p)
	}
	if containsSequence(titleWords, phraseWords) {
		return true
	}
	return strings.Contains(t, p)
}

// MatchPosts returns the posts whose titles match phrase, preserving order.
func MatchPosts(posts []model.Post, phrase string) []model.Post {
	var matched []model.Post
	for _, p := range posts {
		if Match(p.Title, phrase) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Key returns the form two phrases share when they match the same titles.
func Key(phrase string) string {
	return normalize(phrase)
}

func normalize(s string) string {
	// Casers keep state between calls, so each call gets a fresh one.
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

func containsSequence(words, seq []string) bool {
	for i := 0; i+len(seq) <= len(words); i++ {
		if slices.Equal(words[i:i+len(seq)], seq) {
			return true
		}
	}
	return false
}
