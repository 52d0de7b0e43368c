package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lead_bot/internal/config"
	"lead_bot/internal/model"
	"lead_bot/internal/scheduler"
	"lead_bot/internal/storage"
)

// API is the part of the Telegram client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Monitor controls per-workspace monitoring.
type Monitor interface {
	Start(workspaceID int64) (scheduler.StartResult, error)
	Stop(workspaceID int64) scheduler.StopResult
	Active(workspaceID int64) bool
	NextRun(workspaceID int64) (time.Time, bool)
	LastReport(workspaceID int64) (scheduler.TickReport, bool)
	RunOnce(ctx context.Context, phrase string, window model.Window) ([]model.Post, error)
}

// Leads reads and edits the lead-tracking sheet.
type Leads interface {
	RecentLeads(ctx context.Context, limit int) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, row int, status model.LeadStatus, notes string) error
}

// Bot is the Telegram bot that handles user commands. Each chat is one workspace.
type Bot struct {
	api     API
	store   storage.Storage
	monitor Monitor
	leads   Leads
	cfg     *config.Config
	log     *slog.Logger
	now     func() time.Time

	// Test searches run in the background, at most one per chat.
	mu        sync.Mutex
	searching map[int64]bool
	wg        sync.WaitGroup
}

// New creates a Bot. api is usually a *tgbotapi.BotAPI.
func New(api API, store storage.Storage, monitor Monitor, leads Leads, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:     api,
		store:   store,
		monitor: monitor,
		leads:   leads,
		cfg:     cfg,
		log:     log,
		now:     time.Now,

		searching: make(map[int64]bool),
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled and
// background searches have finished.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if from := update.CallbackQuery.From; from != nil && !b.cfg.IsUserAllowed(from.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.From != nil && !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "setup":
		b.handleSetup(ctx, chatID, args)
	case "addphrase":
		b.handleAddPhrase(ctx, chatID, args)
	case cmdRemovePhrase:
		b.handleRemovePhrase(ctx, chatID, args)
	case cmdClearPhrases:
		b.handleClearPhrases(ctx, chatID)
	case "listphrases":
		b.handleListPhrases(ctx, chatID)
	case "startmonitoring":
		b.handleStartMonitoring(ctx, chatID)
	case "stopmonitoring", "stopsearching":
		b.handleStopMonitoring(chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	case "testsearch":
		b.handleTestSearch(ctx, chatID, args)
	case "viewleads":
		b.handleViewLeads(ctx, chatID)
	case "updatestatus":
		b.handleUpdateStatus(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
