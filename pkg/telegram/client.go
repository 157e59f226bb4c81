package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier defines the interface for a Telegram notifier.
type Notifier interface {
	SendMessage(text string) error
	SendAlert(subject, body string) bool
}

// client is an implementation of Notifier.
type client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewClient creates a new Telegram notifier client.
func NewClient(botToken string, chatID int64) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &client{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// SendMessage sends a message to the configured Telegram chat.
func (c *client) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown // Using Markdown for formatting
	_, err := c.bot.Send(msg)
	return err
}

// SendAlert sends a plain-text alert and reports whether Telegram accepted it.
// Alert bodies carry raw error strings, so no parse mode is set.
func (c *client) SendAlert(subject, body string) bool {
	text := strings.TrimSpace(subject + "\n\n" + body)
	_, err := c.bot.Send(tgbotapi.NewMessage(c.chatID, text))
	return err == nil
}

// Nop discards every message. It stands in when Telegram is disabled.
type Nop struct{}

func (Nop) SendMessage(string) error      { return nil }
func (Nop) SendAlert(string, string) bool { return false }
