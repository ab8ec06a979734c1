package app

import (
	"context"
	"errors"

	"kanbot/internal/message"
	"kanbot/internal/routing"
	"kanbot/internal/transport/telegram"
)

// opsSender delivers log-mirror messages with the globally configured bot.
// Credentials are read per send so rotating the global API key takes effect
// without a restart.
type opsSender struct {
	factory  *telegram.Factory
	settings routing.SettingsStore
}

func (o *opsSender) SendOps(ctx context.Context, chatID, text string) error {
	apiKey, err := o.settings.Get(ctx, routing.KeyAPIKey)
	if err != nil {
		return err
	}
	if apiKey == "" {
		return errors.New("global telegram api key not configured")
	}
	botUsername, _ := o.settings.Get(ctx, routing.KeyBotUsername)

	client, err := o.factory.NewClient(apiKey, botUsername)
	if err != nil {
		return err
	}
	// Plain text: log lines are not valid Markdown.
	return client.SendMessage(ctx, message.Message{ChatID: chatID, Text: text})
}
