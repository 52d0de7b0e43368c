package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"lead_bot/internal/model"
	"lead_bot/internal/scheduler"
)

var windowLabels = map[model.Window]string{
	model.WindowHour:      "within one hour",
	model.WindowDay:       "within one day",
	model.WindowYesterday: "yesterday",
	model.WindowWeek:      "this week",
	model.WindowMonth:     "this month",
}

func windowLabel(w model.Window) string {
	if l, ok := windowLabels[w]; ok {
		return l
	}
	return string(w)
}

// FormatNotification formats a matched post as a Telegram notification message.
func FormatNotification(n model.Notification, now time.Time) string {
	p := n.Post
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n\n", n.Phrase)
	b.WriteString(p.Title)
	b.WriteString("\n\n")
	b.WriteString(postMeta(p, now))
	if p.URL != "" {
		b.WriteString("\n")
		b.WriteString(p.URL)
	}
	return b.String()
}

func postMeta(p model.Post, now time.Time) string {
	parts := []string{"r/" + p.Subreddit}
	if p.Author != "" {
		parts = append(parts, "u/"+p.Author)
	}
	parts = append(parts,
		fmt.Sprintf("score %s", humanize.Comma(int64(p.Score))),
		fmt.Sprintf("%s comments", humanize.Comma(int64(p.Comments))),
	)
	if !p.Synthetic && !p.CreatedAt.IsZero() {
		parts = append(parts, humanize.RelTime(p.CreatedAt, now, "ago", "from now"))
	}
	return strings.Join(parts, " | ")
}

// FormatSetup confirms a /setup.
func FormatSetup(ws *model.Workspace, chatID int64, phrases []model.Phrase) string {
	var b strings.Builder
	b.WriteString("Monitoring setup complete.\n\n")
	fmt.Fprintf(&b, "Post age: %s\n", windowLabel(ws.Window))
	if ws.ChannelID == chatID {
		b.WriteString("Channel: this chat\n")
	} else {
		fmt.Fprintf(&b, "Channel: %d\n", ws.ChannelID)
	}
	b.WriteString("Status: active\n\nPhrases:\n")
	b.WriteString(phraseBullets(phrases))
	return b.String()
}

// FormatPhraseList formats the phrases of a workspace.
func FormatPhraseList(ws *model.Workspace, phrases []model.Phrase, active bool) string {
	if len(phrases) == 0 {
		return "No phrases are monitored in this chat. Use /addphrase or /setup to add some."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Monitoring %d phrase(s):\n", len(phrases))
	items := make([]string, len(phrases))
	for i, p := range phrases {
		items[i] = fmt.Sprintf("%s (id %d)", p.Text, p.ID)
	}
	b.WriteString(bullets(items) + "\n")
	fmt.Fprintf(&b, "\nPost age: %s\nStatus: %s", windowLabel(ws.Window), activeLabel(active))
	return b.String()
}

// Status is everything /status shows.
type Status struct {
	Workspace  *model.Workspace
	Phrases    []model.Phrase
	Active     bool
	NextRun    time.Time
	LastReport *scheduler.TickReport
	Notified   int
}

// FormatStatus formats the monitoring status of a workspace.
func FormatStatus(st Status, now time.Time) string {
	var b strings.Builder
	b.WriteString("Monitoring status\n\n")
	fmt.Fprintf(&b, "Status: %s\n", activeLabel(st.Active))
	fmt.Fprintf(&b, "Post age: %s\n", windowLabel(st.Workspace.Window))
	fmt.Fprintf(&b, "Channel: %d\n", st.Workspace.ChannelID)
	fmt.Fprintf(&b, "Posts delivered: %d\n", st.Notified)
	if !st.NextRun.IsZero() {
		fmt.Fprintf(&b, "Next check: %s\n", humanize.RelTime(st.NextRun, now, "ago", "from now"))
	}
	if r := st.LastReport; r != nil {
		fmt.Fprintf(&b, "Last check: %s, %d delivered, %d skipped",
			humanize.RelTime(r.FinishedAt, now, "ago", "from now"), r.Delivered, r.Skipped)
		if len(r.Errors) > 0 {
			fmt.Fprintf(&b, ", %d error(s)", len(r.Errors))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nPhrases:\n")
	if len(st.Phrases) == 0 {
		b.WriteString("no phrases configured\n")
	} else {
		b.WriteString(phraseBullets(st.Phrases))
	}
	return b.String()
}

// FormatSearchResults formats up to limit posts found by /testsearch.
func FormatSearchResults(phrase string, posts []model.Post, limit int, now time.Time) string {
	if len(posts) == 0 {
		return fmt.Sprintf("No posts found with the exact phrase %q.\nOnly titles containing the phrase with the same word order match.", phrase)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d post(s) with the exact phrase %q:\n", len(posts), phrase)
	for i, p := range posts {
		if i == limit {
			fmt.Fprintf(&b, "\n...and %d more", len(posts)-limit)
			break
		}
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n   %s\n", i+1, p.Title, postMeta(p, now), p.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatLeads formats up to limit leads from the spreadsheet.
func FormatLeads(leads []model.Lead, limit int) string {
	if len(leads) == 0 {
		return "No leads yet. Delivered posts are added to the sheet automatically."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent leads (%d):\n", len(leads))
	for i, l := range leads {
		if i == limit {
			fmt.Fprintf(&b, "\nShowing %d of %d leads.", limit, len(leads))
			break
		}
		fmt.Fprintf(&b, "\nRow %d: %s\n   %s %s | r/%s | u/%s | keyword: %s\n   %s\n",
			l.Row, truncate(l.Title, 60), statusMark(l.Status), l.Status, l.Subreddit, l.Author, l.Keyword, l.URL)
	}
	b.WriteString("\nUse /updatestatus <row> <status> [notes] to manage leads.")
	return b.String()
}

var statusMarks = map[model.LeadStatus]string{
	model.LeadNew:           "🆕",
	model.LeadContacted:     "📞",
	model.LeadInterested:    "✅",
	model.LeadNotInterested: "❌",
	model.LeadHired:         "🎉",
	model.LeadClosed:        "🔒",
}

func statusMark(s model.LeadStatus) string {
	if m, ok := statusMarks[s]; ok {
		return m
	}
	return "❓"
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "stopped"
}

func phraseBullets(phrases []model.Phrase) string {
	texts := make([]string, len(phrases))
	for i, p := range phrases {
		texts[i] = p.Text
	}
	return bullets(texts) + "\n"
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, s := range items {
		lines[i] = "• " + s
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
