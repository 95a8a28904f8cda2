package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miralabs/mira-bot/internal/content"
	"github.com/miralabs/mira-bot/internal/domain"
	"github.com/miralabs/mira-bot/internal/store"
	"github.com/miralabs/mira-bot/internal/streak"
)

type routerFixture struct {
	api    *fakeAPI
	repo   *store.Memory
	router *Router
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	provider, err := content.Load()
	require.NoError(t, err)

	loc, err := time.LoadLocation("Asia/Yangon")
	require.NoError(t, err)

	repo := store.NewMemory()
	engine := streak.New(repo, zap.NewNop(), loc, "08:00", "21:00")
	api := &fakeAPI{}
	disp := testDispatcher(api)
	parser := domain.NewParser(provider.Vocabulary())

	return &routerFixture{
		api:    api,
		repo:   repo,
		router: NewRouter(zap.NewNop(), engine, provider, parser, disp),
	}
}

func yangonToday(t *testing.T) string {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Yangon")
	require.NoError(t, err)
	return domain.DateStamp(time.Now().In(loc))
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: chatID},
			From: &tgbotapi.User{ID: chatID, UserName: "mira", FirstName: "Mira"},
		},
	}
}

func TestRouter_StartRegistersAndWelcomes(t *testing.T) {
	f := newRouterFixture(t)
	f.router.HandleUpdate(context.Background(), textUpdate(1, "/start"))

	u, err := f.repo.GetUser(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "@mira", u.DisplayName)
	require.Equal(t, yangonToday(t), u.LastSoberDate)

	sent := f.api.sent()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], "Hello Mira")
}

func TestRouter_StatusWithoutRecord(t *testing.T) {
	f := newRouterFixture(t)
	f.router.HandleUpdate(context.Background(), textUpdate(1, "/status"))

	sent := f.api.sent()
	require.Len(t, sent, 1)
	require.Equal(t, noRecordText, sent[0])
}

func TestRouter_StatusReportsStreak(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.router.HandleUpdate(ctx, textUpdate(1, "/start"))
	f.api.texts = nil

	f.router.HandleUpdate(ctx, textUpdate(1, "/status"))
	sent := f.api.sent()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], "0 day streak")
}

func TestRouter_RelapseReport(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.HandleUpdate(ctx, textUpdate(1, "Beer 350ml x 5"))

	// No-judgment message first, then the logged confirmation, in order.
	sent := f.api.sent()
	require.Len(t, sent, 2)
	require.NotContains(t, sent[0], "Logged:")
	require.Equal(t, "Logged: Beer 350ml x 5. If you need support, try /focus or /motivate.", sent[1])

	u, err := f.repo.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, yangonToday(t), u.LastSoberDate)

	entries, err := f.repo.ListRelapses(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Beer 350ml x 5", entries[0].Reason, "audit keeps the raw text")
}

func TestRouter_CravingSupport(t *testing.T) {
	f := newRouterFixture(t)
	f.router.HandleUpdate(context.Background(), textUpdate(1, "I want to drink"))

	sent := f.api.sent()
	require.Len(t, sent, 1)
	require.NotEqual(t, fallbackText, sent[0])

	// No relapse was recorded.
	entries, err := f.repo.ListRelapses(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRouter_FallbackOnUnknownText(t *testing.T) {
	f := newRouterFixture(t)
	f.router.HandleUpdate(context.Background(), textUpdate(1, "I feel fine today"))

	sent := f.api.sent()
	require.Len(t, sent, 1)
	require.Equal(t, fallbackText, sent[0])
}

func TestRouter_CannedCommands(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	for _, cmd := range []string{"/motivate", "/focus", "/reward"} {
		f.api.texts = nil
		f.router.HandleUpdate(ctx, textUpdate(1, cmd))
		sent := f.api.sent()
		require.Len(t, sent, 1, cmd)
		require.NotEmpty(t, strings.TrimSpace(sent[0]), cmd)
	}
}

func TestRouter_IgnoresNonTextUpdates(t *testing.T) {
	f := newRouterFixture(t)
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{})
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}})
	require.Empty(t, f.api.sent())
}
