package bot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lead_bot/internal/model"
	"lead_bot/internal/scheduler"
)

var now = time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

func TestParseSetupArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    SetupArgs
		wantErr bool
	}{
		{
			name: "single phrase",
			args: "week hire remote developer",
			want: SetupArgs{Window: model.WindowWeek, Phrases: []string{"hire remote developer"}},
		},
		{
			name: "several phrases",
			args: "Day hire remote developer,  freelance   designer , ,golang",
			want: SetupArgs{Window: model.WindowDay, Phrases: []string{"hire remote developer", "freelance designer", "golang"}},
		},
		{
			name: "with channel",
			args: "hour -c -100123 golang",
			want: SetupArgs{Window: model.WindowHour, ChannelID: -100123, Phrases: []string{"golang"}},
		},
		{
			name:    "unknown window",
			args:    "fortnight golang",
			wantErr: true,
		},
		{
			name:    "channel without phrases",
			args:    "week -c 42",
			wantErr: true,
		},
		{
			name:    "bad channel",
			args:    "week -c abc golang",
			wantErr: true,
		},
		{
			name:    "only commas",
			args:    "week , ,",
			wantErr: true,
		},
		{
			name:    "empty",
			args:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSetupArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseSetupArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseUpdateStatusArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    UpdateStatusArgs
		wantErr bool
	}{
		{
			name: "status only",
			args: "5 contacted",
			want: UpdateStatusArgs{Row: 5, Status: model.LeadContacted},
		},
		{
			name: "two-word status with notes",
			args: "12 not interested   budget too low",
			want: UpdateStatusArgs{Row: 12, Status: model.LeadNotInterested, Notes: "budget too low"},
		},
		{
			name: "single-word status with notes",
			args: "3 Hired start monday",
			want: UpdateStatusArgs{Row: 3, Status: model.LeadHired, Notes: "start monday"},
		},
		{
			name:    "header row",
			args:    "1 New",
			wantErr: true,
		},
		{
			name:    "unknown status",
			args:    "4 ghosted",
			wantErr: true,
		},
		{
			name:    "missing status",
			args:    "4",
			wantErr: true,
		},
		{
			name:    "row not a number",
			args:    "x New",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUpdateStatusArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseUpdateStatusArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIDArg(t *testing.T) {
	tests := []struct {
		args    string
		want    int64
		wantErr bool
	}{
		{args: "42", want: 42},
		{args: "  7 extra", want: 7},
		{args: "", wantErr: true},
		{args: "abc", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseIDArg(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIDArg(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseIDArg(%q) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

func samplePost() model.Post {
	return model.Post{
		ID:        "abc123",
		Title:     "Looking to hire remote developer now",
		URL:       "https://www.reddit.com/r/forhire/comments/abc123/looking/",
		Subreddit: "forhire",
		Author:    "alice",
		Score:     1234,
		Comments:  3,
		CreatedAt: now.Add(-48 * time.Hour),
	}
}

func TestFormatNotification(t *testing.T) {
	tests := []struct {
		name string
		post model.Post
		want string
	}{
		{
			name: "full post",
			post: samplePost(),
			want: "[hire remote developer]\n\n" +
				"Looking to hire remote developer now\n\n" +
				"r/forhire | u/alice | score 1,234 | 3 comments | 2 days ago\n" +
				"https://www.reddit.com/r/forhire/comments/abc123/looking/",
		},
		{
			name: "synthetic time and no author",
			post: model.Post{ID: "x", Title: "Hire remote developer", Subreddit: "jobs", CreatedAt: now, Synthetic: true},
			want: "[hire remote developer]\n\n" +
				"Hire remote developer\n\n" +
				"r/jobs | score 0 | 0 comments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatNotification(model.Notification{Post: tt.post, Phrase: "hire remote developer"}, now)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FormatNotification() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatSearchResults(t *testing.T) {
	if got := FormatSearchResults("golang", nil, 5, now); !strings.Contains(got, `No posts found with the exact phrase "golang"`) {
		t.Errorf("empty result = %q", got)
	}

	posts := make([]model.Post, 7)
	for i := range posts {
		posts[i] = samplePost()
	}
	got := FormatSearchResults("hire remote developer", posts, 5, now)
	if !strings.HasPrefix(got, `Found 7 post(s) with the exact phrase "hire remote developer":`) {
		t.Errorf("header missing, got:\n%s", got)
	}
	if !strings.Contains(got, "\n5. Looking to hire") || strings.Contains(got, "\n6. ") {
		t.Errorf("expected exactly 5 numbered posts, got:\n%s", got)
	}
	if !strings.HasSuffix(got, "...and 2 more") {
		t.Errorf("expected overflow note, got:\n%s", got)
	}
}

func TestFormatLeads(t *testing.T) {
	if got := FormatLeads(nil, 5); !strings.Contains(got, "No leads yet") {
		t.Errorf("empty leads = %q", got)
	}

	leads := []model.Lead{
		{Row: 2, Title: "First", Status: model.LeadNew, Subreddit: "forhire", Author: "alice", Keyword: "hire", URL: "u1"},
		{Row: 3, Title: "Second", Status: model.LeadNotInterested, Subreddit: "jobs", Author: "bob", Keyword: "dev", URL: "u2"},
	}
	got := FormatLeads(leads, 1)
	for _, want := range []string{"Recent leads (2):", "Row 2: First", "🆕 New", "Showing 1 of 2 leads."} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatLeads() missing %q, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Row 3") {
		t.Errorf("FormatLeads() exceeded limit, got:\n%s", got)
	}
}

func TestFormatStatus(t *testing.T) {
	st := Status{
		Workspace: &model.Workspace{ID: 1, ChannelID: 555, Window: model.WindowWeek},
		Phrases:   []model.Phrase{{Text: "hire remote developer"}, {Text: "golang"}},
		Active:    true,
		NextRun:   now.Add(3 * time.Minute),
		LastReport: &scheduler.TickReport{
			FinishedAt: now.Add(-2 * time.Minute),
			Delivered:  2,
			Skipped:    1,
			Errors:     []error{errors.New("timeout")},
		},
		Notified: 17,
	}
	got := FormatStatus(st, now)
	for _, want := range []string{
		"Status: active",
		"Post age: this week",
		"Channel: 555",
		"Posts delivered: 17",
		"Next check: 3 minutes from now",
		"Last check: 2 minutes ago, 2 delivered, 1 skipped, 1 error(s)",
		"• hire remote developer\n• golang",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatStatus() missing %q, got:\n%s", want, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q, want %q", got, "short")
	}
	if got := truncate("ünïcödé string", 8); got != "ünïcö..." {
		t.Errorf("truncate() = %q, want %q", got, "ünïcö...")
	}
}
