package bot

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"linkboard/internal/domain"
	"linkboard/internal/page"
)

// messageSender is the part of *tgbot.Bot used to talk back to a chat.
type messageSender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// chatOutput renders lists and alerts into one chat. Rendered lists are also
// kept in the chat's memory document so /debug can count them.
type chatOutput struct {
	bot    messageSender
	chatID int64
	doc    *page.Memory
}

func (o *chatOutput) DisplayLinks(ctx context.Context, list []domain.Link) error {
	if err := o.doc.DisplayLinks(ctx, list); err != nil {
		return err
	}
	return o.send(ctx, FormatLinks(list))
}

func (o *chatOutput) Alert(ctx context.Context, message string) error {
	if err := o.doc.Alert(ctx, message); err != nil {
		return err
	}
	return o.send(ctx, "⚠️ "+message)
}

func (o *chatOutput) send(ctx context.Context, text string) error {
	_, err := o.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: o.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", o.chatID, err)
	}
	return nil
}
