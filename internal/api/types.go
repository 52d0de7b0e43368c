package api

import (
	"context"
	"log/slog"
	"time"

	"lead_bot/internal/model"
	"lead_bot/internal/scheduler"
	"lead_bot/internal/storage"
)

// Monitor is the part of the scheduler the admin API controls.
type Monitor interface {
	Start(workspaceID int64) (scheduler.StartResult, error)
	Stop(workspaceID int64) scheduler.StopResult
	Active(workspaceID int64) bool
	ActiveWorkspaces() []int64
	NextRun(workspaceID int64) (time.Time, bool)
	LastReport(workspaceID int64) (scheduler.TickReport, bool)
	RunOnce(ctx context.Context, phrase string, window model.Window) ([]model.Post, error)
}

var _ Monitor = (*scheduler.Scheduler)(nil)

type Handler struct {
	store   storage.Storage
	monitor Monitor
	log     *slog.Logger
	now     func() time.Time
}

type workspaceInfo struct {
	ID         int64       `json:"id"`
	ChannelID  int64       `json:"channel_id"`
	Window     string      `json:"window"`
	Phrases    []string    `json:"phrases"`
	Active     bool        `json:"active"`
	Delivered  int         `json:"delivered"`
	NextRun    *time.Time  `json:"next_run,omitempty"`
	LastReport *reportInfo `json:"last_report,omitempty"`
}

type reportInfo struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Phrases     int       `json:"phrases"`
	Candidates  int       `json:"candidates"`
	Delivered   int       `json:"delivered"`
	Skipped     int       `json:"skipped"`
	Errors      []string  `json:"errors,omitempty"`
	SelfStopped bool      `json:"self_stopped"`
}

type postInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Subreddit string    `json:"subreddit"`
	Author    string    `json:"author,omitempty"`
	Score     int       `json:"score"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
	Synthetic bool      `json:"synthetic,omitempty"`
}

func newReportInfo(r scheduler.TickReport) *reportInfo {
	info := &reportInfo{
		ID:          r.ID.String(),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Phrases:     r.Phrases,
		Candidates:  r.Candidates,
		Delivered:   r.Delivered,
		Skipped:     r.Skipped,
		SelfStopped: r.SelfStopped,
	}
	for _, err := range r.Errors {
		info.Errors = append(info.Errors, err.Error())
	}
	return info
}

func newPostInfo(p model.Post) postInfo {
	return postInfo{
		ID:        p.ID,
		Title:     p.Title,
		URL:       p.URL,
		Subreddit: p.Subreddit,
		Author:    p.Author,
		Score:     p.Score,
		Comments:  p.Comments,
		CreatedAt: p.CreatedAt,
		Synthetic: p.Synthetic,
	}
}
