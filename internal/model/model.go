// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Window selects the maximum post age accepted for delivery.
type Window string

// Supported recency windows.
const (
	WindowHour      Window = "hour"
	WindowDay       Window = "day"
	WindowYesterday Window = "yesterday"
	WindowWeek      Window = "week"
	WindowMonth     Window = "month"
)

// Windows lists every supported window in display order.
var Windows = []Window{WindowHour, WindowDay, WindowYesterday, WindowWeek, WindowMonth}

// ParseWindow converts user input into a Window.
func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Windows {
		if w == known {
			return w, nil
		}
	}
	return "", fmt.Errorf("unknown window %q, use: hour, day, yesterday, week, month", s)
}

// Workspace is one chat tenant: where matches are delivered and how old they may be.
type Workspace struct {
	ID        int64
	ChannelID int64
	Window    Window
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Phrase is a keyword phrase registered by a workspace.
type Phrase struct {
	ID          int64
	WorkspaceID int64
	Text        string
	CreatedAt   time.Time
}

// Post is a candidate post scraped from a listing page or API.
// It is produced fresh on every scan and never stored as-is.
type Post struct {
	ID        string
	Title     string
	URL       string
	Subreddit string
	Author    string
	Score     int
	Comments  int
	CreatedAt time.Time
	// Synthetic is set when CreatedAt is the scrape time, not the source's timestamp.
	Synthetic bool
}

// NotifiedPost records a post already delivered to a workspace.
type NotifiedPost struct {
	WorkspaceID int64
	PostID      string
	Phrase      string
	Title       string
	URL         string
	Subreddit   string
	CreatedAt   time.Time
}

// Notification is one matched post on its way to a chat.
type Notification struct {
	Post   Post
	Phrase string
}

// LeadStatus is the follow-up state of a lead row in the spreadsheet.
type LeadStatus string

// Supported lead statuses.
const (
	LeadNew           LeadStatus = "New"
	LeadContacted     LeadStatus = "Contacted"
	LeadInterested    LeadStatus = "Interested"
	LeadNotInterested LeadStatus = "Not Interested"
	LeadHired         LeadStatus = "Hired"
	LeadClosed        LeadStatus = "Closed"
)

// LeadStatuses lists every valid lead status.
var LeadStatuses = []LeadStatus{LeadNew, LeadContacted, LeadInterested, LeadNotInterested, LeadHired, LeadClosed}

// ParseLeadStatus matches s case-insensitively against the known statuses.
func ParseLeadStatus(s string) (LeadStatus, error) {
	for _, st := range LeadStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Lead is one row of the lead-tracking spreadsheet.
type Lead struct {
	Row       int
	Timestamp string
	Title     string
	Author    string
	Subreddit string
	Score     int
	Comments  int
	URL       string
	Permalink string
	Status    LeadStatus
	Notes     string
	Keyword   string
}
