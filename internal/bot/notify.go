package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"

	"lead_bot/internal/model"
)

const (
	retryAttempts = 3
	retryBase     = time.Second
	retryCap      = 10 * time.Second
)

// Errors that will not go away by sending again.
var nonRetryableErrors = []string{
	"chat not found",
	"bot was blocked",
	"user is deactivated",
	"chat_id is empty",
	"message is too long",
	"bad request",
}

// Notifier delivers matched posts to chats.
type Notifier struct {
	api     API
	log     *slog.Logger
	now     func() time.Time
	backoff func() retry.Backoff
}

// NewNotifier creates a Notifier that retries transient send failures.
func NewNotifier(api API, log *slog.Logger) *Notifier {
	return &Notifier{
		api: api,
		log: log,
		now: time.Now,
		backoff: func() retry.Backoff {
			b := retry.NewExponential(retryBase)
			b = retry.WithCappedDuration(retryCap, b)
			return retry.WithMaxRetries(retryAttempts-1, b)
		},
	}
}

// Deliver sends the notification to channelID.
func (n *Notifier) Deliver(ctx context.Context, channelID int64, note model.Notification) error {
	msg := tgbotapi.NewMessage(channelID, FormatNotification(note, n.now()))
	msg.DisableWebPagePreview = true
	return n.sendWithRetry(ctx, channelID, msg)
}

func (n *Notifier) sendWithRetry(ctx context.Context, chatID int64, msg tgbotapi.Chattable) error {
	attempt := 0
	err := retry.Do(ctx, n.backoff(), func(_ context.Context) error {
		attempt++
		_, err := n.api.Send(msg)
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		n.log.Warn("send failed, retrying", "chat_id", chatID, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("send to chat %d after %d attempt(s): %w", chatID, attempt, err)
	}
	return nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range nonRetryableErrors {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}
