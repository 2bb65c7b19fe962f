package service

import (
	"fmt"
	"strings"

	"contentops/internal/domain"
	"contentops/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier forwards the events an operator has to act on to one chat.
// Progress and committed syncs stay in the log only.
type TelegramNotifier struct {
	bot    domain.TelegramSender
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}
}

// Attach subscribes the notifier to the bus. A notifier without a bot is a
// no-op.
func (n *TelegramNotifier) Attach(bus *events.EventBus) {
	if n == nil || n.bot == nil {
		return
	}
	bus.Subscribe(n.Handle,
		events.EventTaskSucceeded,
		events.EventTaskFailed,
		events.EventSyncFailed,
		events.EventServerUnreachable,
		events.EventServerRecovered,
	)
}

func (n *TelegramNotifier) Handle(event *events.Event) error {
	text, err := formatNotification(event)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		n.logger.Warn().Err(err).Str("event", event.Type).Msg("Failed to send telegram notification")
		return err
	}
	return nil
}

func formatNotification(event *events.Event) (string, error) {
	switch event.Type {
	case events.EventTaskSucceeded, events.EventTaskFailed:
		var p events.TaskEventPayload
		if err := event.Decode(&p); err != nil {
			return "", err
		}
		var b strings.Builder
		if event.Type == events.EventTaskSucceeded {
			fmt.Fprintf(&b, "✅ Task %s finished", p.TaskID)
		} else {
			fmt.Fprintf(&b, "❌ Task %s failed", p.TaskID)
		}
		if p.Message != "" {
			fmt.Fprintf(&b, "\n%s", p.Message)
		}
		if p.PostID != "" {
			fmt.Fprintf(&b, "\nPost: %s", p.PostID)
		}
		return b.String(), nil

	case events.EventSyncFailed:
		var p events.SyncEventPayload
		if err := event.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("⚠️ Sync %s %s for %s failed: %s\nRun resync after fixing the cause.",
			p.Action, p.Platform, p.MediaDriveID, p.Error), nil

	case events.EventServerUnreachable:
		var p events.ServerEventPayload
		if err := event.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("🔌 Server unreachable after %d attempts: %s", p.ConsecutiveFailures, p.LastError), nil

	case events.EventServerRecovered:
		return "🔌 Server reachable again", nil
	}
	return "", nil
}

// NewTelegramBot connects to the Bot API. An empty token yields a nil sender.
func NewTelegramBot(token string, debug bool) (domain.TelegramSender, error) {
	if token == "" {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}
