package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BotAPI is the slice of the Telegram client this package needs.
// *tgbotapi.BotAPI satisfies it.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Dispatcher delivers message batches via the chat transport with bounded
// retry. Messages within one chat's batch go out in order; a failed message
// is logged and does not abort the rest of the batch. No ordering is
// guaranteed across different chats.
type Dispatcher struct {
	api      BotAPI
	log      *zap.Logger
	attempts int
	pause    time.Duration
}

// NewDispatcher returns a dispatcher with a 3-attempt retry budget for
// transient transport errors.
func NewDispatcher(api BotAPI, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		api:      api,
		log:      log,
		attempts: 3,
		pause:    500 * time.Millisecond,
	}
}

// Send delivers the batch and returns one outcome per message, index-aligned
// with the input.
func (d *Dispatcher) Send(ctx context.Context, chatID int64, messages []string) []error {
	outcomes := make([]error, len(messages))
	for i, text := range messages {
		outcomes[i] = d.sendOne(ctx, chatID, text)
		if outcomes[i] != nil {
			d.log.Warn("message delivery failed",
				zap.Int64("chat_id", chatID),
				zap.Int("index", i),
				zap.Error(outcomes[i]),
			)
		}
	}
	return outcomes
}

func (d *Dispatcher) sendOne(ctx context.Context, chatID int64, text string) error {
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if _, err = d.api.Send(tgbotapi.NewMessage(chatID, text)); err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if attempt == d.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pause * time.Duration(attempt)):
		}
	}
	return err
}

// IsPermanent reports whether a transport error is not worth retrying:
// a blocked or unknown recipient, or a malformed request. Network-level
// failures and server errors are treated as transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 400, 403, 404:
			return true
		}
	}
	return false
}
