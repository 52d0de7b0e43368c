package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdRemovePhrase = "removephrase"
	cmdClearPhrases = "clearphrases"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, idStr, ok := strings.Cut(data, ":")
	if !ok {
		return
	}
	id, err := ParseIDArg(idStr)
	if err != nil {
		return
	}

	log := b.log.With("action", action, "id", id, "chat_id", chatID)
	if cb.From != nil {
		log = log.With("user_id", cb.From.ID, "username", cb.From.UserName)
	}
	log.Info("callback")

	switch action {
	case cmdRemovePhrase:
		p, err := b.store.GetPhrase(ctx, id)
		if err != nil || p.WorkspaceID != chatID {
			b.reply(chatID, "Phrase not found.")
			return
		}
		b.removePhrase(ctx, chatID, p.Text)
	case cmdClearPhrases:
		b.clearPhrases(ctx, chatID)
	case "noop":
	default:
		b.reply(chatID, fmt.Sprintf("Unknown action %q.", action))
	}
}
