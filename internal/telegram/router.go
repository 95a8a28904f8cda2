package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/miralabs/mira-bot/internal/content"
	"github.com/miralabs/mira-bot/internal/domain"
	"github.com/miralabs/mira-bot/internal/store"
	"github.com/miralabs/mira-bot/internal/streak"
)

// Router maps normalized inbound updates to relapse handling, craving
// support, command handling or the fallback reply. It holds no per-chat
// state; every branch tolerates malformed input.
type Router struct {
	log     *zap.Logger
	engine  *streak.Engine
	content *content.Provider
	parser  *domain.Parser
	disp    *Dispatcher
}

// NewRouter creates a router over the given collaborators.
func NewRouter(log *zap.Logger, engine *streak.Engine, provider *content.Provider, parser *domain.Parser, disp *Dispatcher) *Router {
	return &Router{
		log:     log,
		engine:  engine,
		content: provider,
		parser:  parser,
		disp:    disp,
	}
}

// HandleUpdate routes a single update. Safe to call from concurrent
// goroutines; per-chat writes are serialized inside the streak engine.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	msg := upd.Message
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	r.log.Debug("inbound message", zap.Int64("chat_id", chatID))

	switch {
	case strings.HasPrefix(text, "/start"):
		r.handleStart(ctx, chatID, msg.From)
	case strings.HasPrefix(text, "/status"):
		r.handleStatus(ctx, chatID)
	case strings.HasPrefix(text, "/motivate"):
		r.reply(ctx, chatID, r.content.Motivate())
	case strings.HasPrefix(text, "/focus"):
		r.reply(ctx, chatID, r.content.Focus())
	case strings.HasPrefix(text, "/reward"):
		r.reply(ctx, chatID, r.content.Reward())
	default:
		r.handleFreeForm(ctx, chatID, msg.From, text)
	}
}

func (r *Router) handleStart(ctx context.Context, chatID int64, from *tgbotapi.User) {
	if _, err := r.engine.RegisterOrTouch(ctx, chatID, displayName(from)); err != nil {
		r.log.Error("register failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.reply(ctx, chatID, errorText)
		return
	}
	r.reply(ctx, chatID, fmt.Sprintf(welcomeFmt, firstName(from)))
}

func (r *Router) handleStatus(ctx context.Context, chatID int64) {
	days, err := r.engine.StreakFor(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		r.reply(ctx, chatID, noRecordText)
		return
	}
	if err != nil {
		r.log.Error("status read failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.reply(ctx, chatID, errorText)
		return
	}
	r.reply(ctx, chatID, fmt.Sprintf(statusFmt, days))
}

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	sig, craving := r.parser.Parse(text)
	switch {
	case sig != nil:
		// The raw text is the audit reason; the normalized form is only
		// echoed back to the user.
		if err := r.engine.RecordRelapse(ctx, chatID, displayName(from), text); err != nil {
			r.log.Error("record relapse failed", zap.Int64("chat_id", chatID), zap.Error(err))
			r.reply(ctx, chatID, errorText)
			return
		}
		r.disp.Send(ctx, chatID, []string{
			r.content.NoJudgment(),
			fmt.Sprintf(loggedFmt, sig.Describe()),
		})

	case craving:
		r.reply(ctx, chatID, r.content.Craving())

	default:
		r.reply(ctx, chatID, fallbackText)
	}
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	r.disp.Send(ctx, chatID, []string{text})
}

// displayName mirrors the "@username, else full name, else User<id>" shape
// the record store expects.
func displayName(from *tgbotapi.User) string {
	if from == nil {
		return ""
	}
	if from.UserName != "" {
		return "@" + from.UserName
	}
	if from.FirstName != "" {
		name := from.FirstName
		if from.LastName != "" {
			name += " " + from.LastName
		}
		return name
	}
	return fmt.Sprintf("User%d", from.ID)
}

func firstName(from *tgbotapi.User) string {
	if from == nil || from.FirstName == "" {
		return "there"
	}
	return from.FirstName
}
