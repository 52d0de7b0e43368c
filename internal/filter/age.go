package filter

import (
	"time"

	"lead_bot/internal/model"
)

// Window thresholds, inclusive upper bounds.
const (
	hourLimit  = time.Hour
	dayLimit   = 24 * time.Hour
	twoDays    = 48 * time.Hour
	weekLimit  = 7 * 24 * time.Hour
	monthLimit = 30 * 24 * time.Hour
)

// InWindow reports whether post is young enough for window at now.
// "yesterday" accepts posts strictly older than one day and at most two days
// old. Unknown windows fall back to the day threshold.
//
// Posts with a synthetic timestamp have no known age and pass every window.
func InWindow(post model.Post, window model.Window, now time.Time) bool {
	if post.Synthetic {
		return true
	}

	age := now.Sub(post.CreatedAt)
	if age < 0 {
		age = 0
	}

	switch window {
	case model.WindowHour:
		return age <= hourLimit
	case model.WindowDay:
		return age <= dayLimit
	case model.WindowYesterday:
		return age > dayLimit && age <= twoDays
	case model.WindowWeek:
		return age <= weekLimit
	case model.WindowMonth:
		return age <= monthLimit
	default:
		return age <= dayLimit
	}
}
