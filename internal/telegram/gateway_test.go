package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tube-courier/internal/coordinator"
	"tube-courier/internal/media"
	"tube-courier/internal/platform/logger"
	"tube-courier/internal/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"blocked", &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, coordinator.ErrUnauthorized},
		{"entity_too_large", &tgbotapi.Error{Code: 413, Message: "Request Entity Too Large"}, coordinator.ErrPayloadTooLarge},
		{"file_too_large", &tgbotapi.Error{Code: 400, Message: "Bad Request: file is too large"}, coordinator.ErrPayloadTooLarge},
		{"rate_limited", &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 5"}, coordinator.ErrTransport},
		{"network", errors.New("dial tcp: i/o timeout"), coordinator.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGateway_SendFile(t *testing.T) {
	chat := session.Chat{ChatID: 42, MessageID: 7}
	file := media.File{Path: "/tmp/x.mp4", Size: 1024}
	caption := coordinator.Caption{Title: "Song", Performer: "Band", DurationSeconds: 90, HTML: "<b>Song</b>"}

	t.Run("video", func(t *testing.T) {
		bot := &fakeBot{}
		gw := NewGateway(bot, logger.Discard())

		require.NoError(t, gw.SendFile(context.Background(), chat, file, media.ModeVideo, caption))
		require.Len(t, bot.sent, 1)
		video, ok := bot.sent[0].(tgbotapi.VideoConfig)
		require.True(t, ok, "expected VideoConfig, got %T", bot.sent[0])
		assert.Equal(t, int64(42), video.ChatID)
		assert.Equal(t, tgbotapi.FilePath("/tmp/x.mp4"), video.File)
		assert.Equal(t, "<b>Song</b>", video.Caption)
		assert.Equal(t, tgbotapi.ModeHTML, video.ParseMode)
		assert.True(t, video.SupportsStreaming)
	})

	t.Run("audio", func(t *testing.T) {
		bot := &fakeBot{}
		gw := NewGateway(bot, logger.Discard())

		require.NoError(t, gw.SendFile(context.Background(), chat, file, media.ModeAudio, caption))
		audio, ok := bot.sent[0].(tgbotapi.AudioConfig)
		require.True(t, ok, "expected AudioConfig, got %T", bot.sent[0])
		assert.Equal(t, "Song", audio.Title)
		assert.Equal(t, "Band", audio.Performer)
		assert.Equal(t, 90, audio.Duration)
	})

	t.Run("cancelled_context", func(t *testing.T) {
		bot := &fakeBot{}
		gw := NewGateway(bot, logger.Discard())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := gw.SendFile(ctx, chat, file, media.ModeVideo, caption)
		assert.ErrorIs(t, err, coordinator.ErrTransport)
		assert.Empty(t, bot.sent)
	})

	t.Run("api_error", func(t *testing.T) {
		bot := &fakeBot{sendErr: &tgbotapi.Error{Code: 403, Message: "Forbidden"}}
		gw := NewGateway(bot, logger.Discard())

		err := gw.SendFile(context.Background(), chat, file, media.ModeVideo, caption)
		assert.ErrorIs(t, err, coordinator.ErrUnauthorized)
	})
}

func TestGateway_EditText(t *testing.T) {
	chat := session.Chat{ChatID: 42, MessageID: 7}

	t.Run("edits_message", func(t *testing.T) {
		bot := &fakeBot{}
		gw := NewGateway(bot, logger.Discard())

		require.NoError(t, gw.EditText(context.Background(), chat, "done"))
		edits := bot.edits()
		require.Len(t, edits, 1)
		assert.Equal(t, 7, edits[0].MessageID)
		assert.Equal(t, "done", edits[0].Text)
		assert.Nil(t, edits[0].ReplyMarkup)
	})

	t.Run("not_modified_is_ignored", func(t *testing.T) {
		bot := &fakeBot{reqErr: &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}}
		gw := NewGateway(bot, logger.Discard())

		assert.NoError(t, gw.EditText(context.Background(), chat, "same"))
	})

	t.Run("other_errors_surface", func(t *testing.T) {
		bot := &fakeBot{reqErr: &tgbotapi.Error{Code: 400, Message: "Bad Request: message to edit not found"}}
		gw := NewGateway(bot, logger.Discard())

		assert.ErrorIs(t, gw.EditText(context.Background(), chat, "x"), coordinator.ErrTransport)
	})
}

func TestGateway_Post(t *testing.T) {
	bot := &fakeBot{}
	gw := NewGateway(bot, logger.Discard())

	id, err := gw.Post(42, "<i>hi</i>")
	require.NoError(t, err)
	if id != 101 {
		t.Errorf("expected message id 101, got %d", id)
	}
	msgs := bot.messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].DisableWebPagePreview)
	assert.Equal(t, tgbotapi.ModeHTML, msgs[0].ParseMode)
}
