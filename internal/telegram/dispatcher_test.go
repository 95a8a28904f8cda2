package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAPI records sent texts and fails according to a script.
type fakeAPI struct {
	mu    sync.Mutex
	texts []string
	chats []int64
	// script returns the error for the n-th call (0-based); nil means success.
	script func(call int, msg tgbotapi.MessageConfig) error
	calls  int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	call := f.calls
	f.calls++
	if f.script != nil {
		if err := f.script(call, msg); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.texts = append(f.texts, msg.Text)
	f.chats = append(f.chats, msg.ChatID)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func testDispatcher(api *fakeAPI) *Dispatcher {
	d := NewDispatcher(api, zap.NewNop())
	d.pause = time.Millisecond
	return d
}

func TestSend_OrderPreserved(t *testing.T) {
	api := &fakeAPI{}
	d := testDispatcher(api)

	outcomes := d.Send(context.Background(), 1, []string{"a", "b", "c"})
	require.Equal(t, []error{nil, nil, nil}, outcomes)
	require.Equal(t, []string{"a", "b", "c"}, api.sent())
}

func TestSend_TransientErrorRetries(t *testing.T) {
	api := &fakeAPI{
		script: func(call int, _ tgbotapi.MessageConfig) error {
			if call < 2 {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	d := testDispatcher(api)

	outcomes := d.Send(context.Background(), 1, []string{"hello"})
	require.NoError(t, outcomes[0])
	require.Equal(t, 3, api.calls, "two transient failures then success")
	require.Equal(t, []string{"hello"}, api.sent())
}

func TestSend_TransientErrorExhaustsBudget(t *testing.T) {
	boom := errors.New("i/o timeout")
	api := &fakeAPI{script: func(int, tgbotapi.MessageConfig) error { return boom }}
	d := testDispatcher(api)

	outcomes := d.Send(context.Background(), 1, []string{"hello"})
	require.ErrorIs(t, outcomes[0], boom)
	require.Equal(t, 3, api.calls, "retry budget is bounded")
}

func TestSend_PermanentErrorNotRetried(t *testing.T) {
	blocked := &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	api := &fakeAPI{script: func(int, tgbotapi.MessageConfig) error { return blocked }}
	d := testDispatcher(api)

	outcomes := d.Send(context.Background(), 1, []string{"hello"})
	require.Error(t, outcomes[0])
	require.Equal(t, 1, api.calls, "permanent errors are logged and dropped")
}

func TestSend_FailureDoesNotAbortBatch(t *testing.T) {
	blocked := &tgbotapi.Error{Code: 400, Message: "Bad Request"}
	api := &fakeAPI{
		script: func(call int, msg tgbotapi.MessageConfig) error {
			if msg.Text == "b" {
				return blocked
			}
			return nil
		},
	}
	d := testDispatcher(api)

	outcomes := d.Send(context.Background(), 1, []string{"a", "b", "c"})
	require.NoError(t, outcomes[0])
	require.Error(t, outcomes[1])
	require.NoError(t, outcomes[2])
	require.Equal(t, []string{"a", "c"}, api.sent())
}

func TestIsPermanent(t *testing.T) {
	require.True(t, IsPermanent(&tgbotapi.Error{Code: 403}))
	require.True(t, IsPermanent(&tgbotapi.Error{Code: 400}))
	require.True(t, IsPermanent(&tgbotapi.Error{Code: 404}))
	require.False(t, IsPermanent(&tgbotapi.Error{Code: 429}))
	require.False(t, IsPermanent(&tgbotapi.Error{Code: 500}))
	require.False(t, IsPermanent(errors.New("dial tcp: timeout")))
	require.False(t, IsPermanent(nil))
}
