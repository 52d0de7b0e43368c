package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lead_bot/internal/filter"
	"lead_bot/internal/model"
	"lead_bot/internal/scheduler"
	"lead_bot/internal/sheets"
	"lead_bot/internal/storage"
)

const (
	defaultTestPhrase = "software engineer to test"
	testSearchShown   = 5
	leadsFetched      = 10
	leadsShown        = 5
)

const noSetup = "No monitoring setup found for this chat. Use /setup to configure monitoring."

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Lead Bot!

I watch Reddit for posts whose titles contain your exact phrases and send new ones here.

Quick start:
1. /setup week hire remote developer, freelance designer
2. /testsearch hire remote developer - try a phrase right now
3. /status - see what is being monitored

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Setup:
/setup <window> [-c chat_id] <phrase, phrase...> - configure and start monitoring
   window: hour | day | yesterday | week | month
   -c: deliver matches to another chat
/addphrase <phrase, phrase...> - monitor more phrases
/removephrase <phrase or id> - stop monitoring a phrase
/clearphrases - remove all phrases
/listphrases - show monitored phrases

Control:
/startmonitoring - start checking every few minutes
/stopmonitoring - stop checking (alias /stopsearching)
/status - monitoring status
/testsearch [phrase] - search this week's posts now

Leads (Google Sheets):
/viewleads - recent leads
/updatestatus <row> <status> [notes] - update a lead
   status: New | Contacted | Interested | Not Interested | Hired | Closed

Matching:
- the phrase must appear in the title with the same word order
- case-insensitive
- a single word must match a whole word
- a post is delivered to a chat only once`)
}

func (b *Bot) handleSetup(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseSetupArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	channel := parsed.ChannelID
	if channel == 0 {
		channel = chatID
	}
	ws := &model.Workspace{ID: chatID, ChannelID: channel, Window: parsed.Window}
	if err := b.store.UpsertWorkspace(ctx, ws); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save setup: %v", err))
		return
	}

	for _, p := range parsed.Phrases {
		if _, err := b.store.AddPhrase(ctx, chatID, p); err != nil {
			b.reply(chatID, fmt.Sprintf("Failed to save phrase %q: %v", p, err))
			return
		}
	}

	phrases, err := b.store.ListPhrases(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	if _, err := b.monitor.Start(chatID); err != nil {
		b.log.Error("start monitoring", "workspace_id", chatID, "error", err)
		b.reply(chatID, fmt.Sprintf("Setup saved, but monitoring failed to start: %v", err))
		return
	}

	b.log.Info("workspace configured", "workspace_id", chatID, "channel_id", channel, "window", parsed.Window, "phrases", len(phrases))
	b.reply(chatID, FormatSetup(ws, chatID, phrases))
}

func (b *Bot) handleAddPhrase(ctx context.Context, chatID int64, args string) {
	phrases := SplitPhrases(args)
	if len(phrases) == 0 {
		b.reply(chatID, "Usage: /addphrase <phrase, phrase...>")
		return
	}
	if _, ok := b.workspace(ctx, chatID); !ok {
		return
	}

	var added, existing []string
	for _, p := range phrases {
		ok, err := b.store.AddPhrase(ctx, chatID, p)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Failed to save phrase %q: %v", p, err))
			return
		}
		if ok {
			added = append(added, p)
		} else {
			existing = append(existing, p)
		}
	}

	var sb strings.Builder
	if len(added) > 0 {
		fmt.Fprintf(&sb, "Added %d phrase(s):\n%s\n", len(added), bullets(added))
	}
	if len(existing) > 0 {
		fmt.Fprintf(&sb, "Already monitored:\n%s\n", bullets(existing))
	}
	if !b.monitor.Active(chatID) {
		sb.WriteString("\nMonitoring is stopped. Use /startmonitoring to resume.")
	}
	b.reply(chatID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleRemovePhrase(ctx context.Context, chatID int64, args string) {
	phrase := strings.Join(strings.Fields(args), " ")
	if phrase == "" {
		b.reply(chatID, "Usage: /removephrase <phrase or id>")
		return
	}

	phrases, err := b.store.ListPhrases(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.removePhrase(ctx, chatID, resolvePhrase(phrases, phrase))
}

// resolvePhrase maps an ID from /listphrases to its text. Text that is a
// monitored phrase itself takes precedence over an ID.
func resolvePhrase(phrases []model.Phrase, arg string) string {
	key := filter.Key(arg)
	for _, p := range phrases {
		if filter.Key(p.Text) == key {
			return p.Text
		}
	}
	if strings.Contains(arg, " ") {
		return arg
	}
	id, err := ParseIDArg(arg)
	if err != nil {
		return arg
	}
	for _, p := range phrases {
		if p.ID == id {
			return p.Text
		}
	}
	return arg
}

func (b *Bot) removePhrase(ctx context.Context, chatID int64, phrase string) {
	removed, err := b.store.RemovePhrase(ctx, chatID, phrase)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("Phrase %q is not monitored.", phrase))
		return
	}

	left, err := b.store.ListPhrases(ctx, chatID)
	if err == nil && len(left) == 0 {
		b.monitor.Stop(chatID)
		b.reply(chatID, fmt.Sprintf("Removed %q. No phrases left, monitoring stopped.", phrase))
		return
	}
	b.reply(chatID, fmt.Sprintf("Removed %q.", phrase))
}

func (b *Bot) handleClearPhrases(ctx context.Context, chatID int64) {
	phrases, err := b.store.ListPhrases(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(phrases) == 0 {
		b.reply(chatID, "No phrases to clear.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Remove all %d phrase(s) and stop monitoring?", len(phrases)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, clear", cmdClearPhrases+":0"),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send clear confirmation", "error", err)
	}
}

func (b *Bot) clearPhrases(ctx context.Context, chatID int64) {
	n, err := b.store.ClearPhrases(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.monitor.Stop(chatID)
	b.reply(chatID, fmt.Sprintf("Cleared %d phrase(s). Monitoring stopped.", n))
}

func (b *Bot) handleListPhrases(ctx context.Context, chatID int64) {
	ws, ok := b.workspace(ctx, chatID)
	if !ok {
		return
	}
	phrases, err := b.store.ListPhrases(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatPhraseList(ws, phrases, b.monitor.Active(chatID)))
	if len(phrases) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(phrases))
		for _, p := range phrases {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Remove: "+truncate(p.Text, 40), fmt.Sprintf("%s:%d", cmdRemovePhrase, p.ID)),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send phrase list", "error", err)
	}
}

func (b *Bot) handleStartMonitoring(ctx context.Context, chatID int64) {
	if _, ok := b.workspace(ctx, chatID); !ok {
		return
	}
	phrases, err := b.store.ListPhrases(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(phrases) == 0 {
		b.reply(chatID, "No phrases configured. Use /addphrase first.")
		return
	}

	res, err := b.monitor.Start(chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to start monitoring: %v", err))
		return
	}
	if res == scheduler.AlreadyActive {
		b.reply(chatID, "Monitoring is already active.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Monitoring started for %d phrase(s).", len(phrases)))
}

func (b *Bot) handleStopMonitoring(chatID int64) {
	if b.monitor.Stop(chatID) == scheduler.NotActive {
		b.reply(chatID, "Monitoring is not active.")
		return
	}
	b.reply(chatID, "Monitoring stopped.")
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	ws, ok := b.workspace(ctx, chatID)
	if !ok {
		return
	}
	phrases, err := b.store.ListPhrases(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	notified, err := b.store.CountNotified(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	st := Status{
		Workspace: ws,
		Phrases:   phrases,
		Active:    b.monitor.Active(chatID),
		Notified:  notified,
	}
	if next, ok := b.monitor.NextRun(chatID); ok && !next.IsZero() {
		st.NextRun = next
	}
	if rep, ok := b.monitor.LastReport(chatID); ok {
		st.LastReport = &rep
	}
	b.reply(chatID, FormatStatus(st, b.now()))
}

func (b *Bot) handleTestSearch(ctx context.Context, chatID int64, args string) {
	phrase := strings.Join(strings.Fields(args), " ")
	if phrase == "" {
		phrase = defaultTestPhrase
	}

	b.mu.Lock()
	if b.searching[chatID] {
		b.mu.Unlock()
		b.reply(chatID, "A test search is already running in this chat.")
		return
	}
	b.searching[chatID] = true
	b.mu.Unlock()

	b.reply(chatID, fmt.Sprintf("Searching this week's posts for %q...", phrase))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			b.mu.Lock()
			delete(b.searching, chatID)
			b.mu.Unlock()
		}()

		posts, err := b.monitor.RunOnce(ctx, phrase, model.WindowWeek)
		if err != nil {
			b.log.Warn("test search", "chat_id", chatID, "phrase", phrase, "error", err)
			b.reply(chatID, fmt.Sprintf("Search failed: %v", err))
			return
		}
		b.reply(chatID, FormatSearchResults(phrase, posts, testSearchShown, b.now()))
	}()
}

func (b *Bot) handleViewLeads(ctx context.Context, chatID int64) {
	leads, err := b.leads.RecentLeads(ctx, leadsFetched)
	if errors.Is(err, sheets.ErrDisabled) {
		b.reply(chatID, "Google Sheets integration is not enabled. Set SHEETS_ENABLED=true and GOOGLE_SHEET_ID.")
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error fetching leads: %v", err))
		return
	}
	b.reply(chatID, FormatLeads(leads, leadsShown))
}

func (b *Bot) handleUpdateStatus(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseUpdateStatusArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	err = b.leads.UpdateLeadStatus(ctx, parsed.Row, parsed.Status, parsed.Notes)
	if errors.Is(err, sheets.ErrDisabled) {
		b.reply(chatID, "Google Sheets integration is not enabled. Set SHEETS_ENABLED=true and GOOGLE_SHEET_ID.")
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to update row %d: %v", parsed.Row, err))
		return
	}

	notes := parsed.Notes
	if notes == "" {
		notes = "no notes"
	}
	b.reply(chatID, fmt.Sprintf("Lead in row %d updated: %s %s\nNotes: %s", parsed.Row, statusMark(parsed.Status), parsed.Status, notes))
}

// workspace loads the chat's settings, replying when there are none.
func (b *Bot) workspace(ctx context.Context, chatID int64) (*model.Workspace, bool) {
	ws, err := b.store.GetWorkspace(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, noSetup)
		return nil, false
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return nil, false
	}
	return ws, true
}
