// Package telegram delivers results to Telegram chats and routes incoming
// updates to the coordinator.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tube-courier/internal/coordinator"
	"tube-courier/internal/media"
	"tube-courier/internal/session"
)

// botClient is the subset of *tgbotapi.BotAPI the gateway uses.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Gateway implements coordinator.Delivery on the Bot API.
type Gateway struct {
	bot botClient
	log *slog.Logger
}

// NewGateway returns a Gateway that talks through bot.
func NewGateway(bot botClient, log *slog.Logger) *Gateway {
	return &Gateway{bot: bot, log: log.With(slog.String("component", "telegram"))}
}

// SendFile uploads file as a video or audio message.
func (g *Gateway) SendFile(ctx context.Context, chat session.Chat, file media.File, mode media.Mode, caption coordinator.Caption) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrTransport, err)
	}

	var msg tgbotapi.Chattable
	upload := tgbotapi.FilePath(file.Path)
	if mode == media.ModeAudio {
		audio := tgbotapi.NewAudio(chat.ChatID, upload)
		audio.Caption = caption.HTML
		audio.ParseMode = tgbotapi.ModeHTML
		audio.Title = caption.Title
		audio.Performer = caption.Performer
		audio.Duration = caption.DurationSeconds
		msg = audio
	} else {
		video := tgbotapi.NewVideo(chat.ChatID, upload)
		video.Caption = caption.HTML
		video.ParseMode = tgbotapi.ModeHTML
		video.Duration = caption.DurationSeconds
		video.SupportsStreaming = true
		msg = video
	}

	if _, err := g.bot.Send(msg); err != nil {
		return classify(err)
	}
	g.log.Debug("file uploaded",
		slog.Int64("chat_id", chat.ChatID),
		slog.Int64("size", file.Size),
		slog.String("mode", string(mode)))
	return nil
}

// SendText posts a new HTML message.
func (g *Gateway) SendText(ctx context.Context, chatID int64, html string) error {
	_, err := g.Post(chatID, html)
	return err
}

// Post sends an HTML message and returns its id for later edits.
func (g *Gateway) Post(chatID int64, html string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	sent, err := g.bot.Send(msg)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

// EditText replaces the text of chat.MessageID and drops its keyboard.
// Edits that change nothing are not errors.
func (g *Gateway) EditText(ctx context.Context, chat session.Chat, html string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", coordinator.ErrTransport, err)
	}
	edit := tgbotapi.NewEditMessageText(chat.ChatID, chat.MessageID, html)
	edit.ParseMode = tgbotapi.ModeHTML
	return g.request(edit)
}

// EditKeyboard replaces text and keyboard of an existing message.
func (g *Gateway) EditKeyboard(chat session.Chat, html string, markup tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chat.ChatID, chat.MessageID, html, markup)
	edit.ParseMode = tgbotapi.ModeHTML
	return g.request(edit)
}

// Answer acknowledges a callback query with a toast, or an alert when alert is set.
func (g *Gateway) Answer(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	return g.request(cb)
}

func (g *Gateway) request(c tgbotapi.Chattable) error {
	if _, err := g.bot.Request(c); err != nil {
		if isNotModified(err) {
			return nil
		}
		return classify(err)
	}
	return nil
}

// classify wraps a Bot API failure in the matching coordinator delivery error.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 403:
			return fmt.Errorf("%w: %s", coordinator.ErrUnauthorized, apiErr.Message)
		case apiErr.Code == 413, strings.Contains(strings.ToLower(apiErr.Message), "too large"):
			return fmt.Errorf("%w: %s", coordinator.ErrPayloadTooLarge, apiErr.Message)
		}
		return fmt.Errorf("%w: %d %s", coordinator.ErrTransport, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", coordinator.ErrTransport, err)
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}
