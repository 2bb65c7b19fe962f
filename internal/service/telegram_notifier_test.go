package service

import (
	"errors"
	"strings"
	"testing"

	"contentops/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func messageContaining(chatID int64, part string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && strings.Contains(msg.Text, part)
	})
}

func TestTelegramNotifier(t *testing.T) {
	sender := new(mockTelegramSender)
	bus := events.NewEventBus(nil)
	NewTelegramNotifier(sender, 42, nil).Attach(bus)

	t.Run("task succeeded", func(t *testing.T) {
		sender.On("Send", messageContaining(42, "Post: 123_456")).Return(tgbotapi.Message{}, nil).Once()
		require.NoError(t, bus.PublishJSON(events.EventTaskSucceeded, events.TaskEventPayload{
			TaskID: "t1", Status: "success", Message: "Published", PostID: "123_456",
		}))
		sender.AssertExpectations(t)
	})

	t.Run("sync failed", func(t *testing.T) {
		sender.On("Send", messageContaining(42, "quota exceeded")).Return(tgbotapi.Message{}, nil).Once()
		require.NoError(t, bus.PublishJSON(events.EventSyncFailed, events.SyncEventPayload{
			MediaDriveID: "D1", Platform: "facebook", Action: "upsert", Error: "quota exceeded",
		}))
		sender.AssertExpectations(t)
	})

	t.Run("server unreachable", func(t *testing.T) {
		sender.On("Send", messageContaining(42, "after 3 attempts")).Return(tgbotapi.Message{}, nil).Once()
		require.NoError(t, bus.PublishJSON(events.EventServerUnreachable, events.ServerEventPayload{
			ConsecutiveFailures: 3, LastError: "connection refused",
		}))
		sender.AssertExpectations(t)
	})

	t.Run("progress is not forwarded", func(t *testing.T) {
		require.NoError(t, bus.PublishJSON(events.EventTaskProgress, events.TaskEventPayload{TaskID: "t1"}))
		require.NoError(t, bus.PublishJSON(events.EventSyncCommitted, events.SyncEventPayload{IntentID: "i1"}))
		sender.AssertNumberOfCalls(t, "Send", 3)
	})
}

func TestTelegramNotifierSendError(t *testing.T) {
	sender := new(mockTelegramSender)
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("flood wait"))
	n := NewTelegramNotifier(sender, 1, nil)

	err := n.Handle(&events.Event{Type: events.EventServerRecovered, Payload: []byte(`{}`)})
	assert.EqualError(t, err, "flood wait")
}

func TestTelegramNotifierWithoutBot(t *testing.T) {
	bus := events.NewEventBus(nil)
	NewTelegramNotifier(nil, 1, nil).Attach(bus)
	assert.NoError(t, bus.PublishJSON(events.EventTaskFailed, events.TaskEventPayload{TaskID: "t1"}))

	sender, err := NewTelegramBot("", false)
	require.NoError(t, err)
	assert.Nil(t, sender)
}
