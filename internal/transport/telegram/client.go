// Package telegram backs the delivery gateway with the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"kanbot/internal/gateway"
	"kanbot/internal/message"
)

// Factory opens one telebot session per delivery attempt. Sessions are not
// cached: credentials are resolved fresh for every dispatch and the send
// volume of a notification feed does not justify a pool.
type Factory struct {
	timeout time.Duration
	http    *http.Client
}

func NewFactory(timeout time.Duration) *Factory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Factory{
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

func (f *Factory) NewClient(apiKey, botUsername string) (gateway.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("telegram api key is empty")
	}
	// NewBot performs getMe, so a bad token fails here rather than at send.
	b, err := tele.NewBot(tele.Settings{
		Token:  apiKey,
		Client: f.http,
	})
	if err != nil {
		return nil, err
	}
	return &client{bot: b, username: botUsername}, nil
}

type client struct {
	bot      *tele.Bot
	username string
}

func (c *client) SendMessage(ctx context.Context, msg message.Message) error {
	_, err := c.bot.Send(recipient(msg.ChatID), msg.Text, &tele.SendOptions{
		ParseMode: msg.ParseMode,
	})
	return err
}

// recipient lets a raw chat id string (numeric id or @channel) be used as a
// telebot send target.
type recipient string

func (r recipient) Recipient() string { return string(r) }
