package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tube-courier/internal/coordinator"
	"tube-courier/internal/media"
	"tube-courier/internal/session"
)

// arabicSearch matches the Arabic "search" word followed by a query anywhere
// in a message.
var arabicSearch = regexp.MustCompile(`بحث\s+(.+)`)

// Coordinator is what the router needs from the download coordinator.
type Coordinator interface {
	OnSearchOrUrl(ctx context.Context, req coordinator.LookupRequest) coordinator.Result
	OnEncodingChosen(ctx context.Context, ownerID int64, sid session.ID, encodingID string) coordinator.Result
	EncodingAt(sid session.ID, idx int) (string, bool)
}

// RouterConfig configures command handling.
type RouterConfig struct {
	Mode           media.Mode
	MaxUploadBytes int64
	UserRatePerMin int
}

// Router turns updates into coordinator calls and chat replies.
type Router struct {
	cfg     RouterConfig
	coord   Coordinator
	gw      *Gateway
	limiter *userLimiter
	log     *slog.Logger
}

// NewRouter returns a Router.
func NewRouter(cfg RouterConfig, coord Coordinator, gw *Gateway, log *slog.Logger) *Router {
	return &Router{
		cfg:     cfg,
		coord:   coord,
		gw:      gw,
		limiter: newUserLimiter(cfg.UserRatePerMin),
		log:     log.With(slog.String("component", "router")),
	}
}

// HandleUpdate processes one update synchronously.
func (r *Router) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		r.handleMessage(ctx, update.Message)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			r.reply(chatID, welcomeText(msg.From.FirstName, r.cfg.Mode))
		case "help":
			r.reply(chatID, helpText(r.cfg.Mode))
		case "search":
			r.lookup(ctx, msg, strings.TrimSpace(msg.CommandArguments()))
		}
		return
	}

	if m := arabicSearch.FindStringSubmatch(text); m != nil {
		r.lookup(ctx, msg, strings.TrimSpace(m[1]))
		return
	}
	if link := media.ExtractURL(text); link != "" {
		r.lookup(ctx, msg, link)
		return
	}
	if msg.Chat.IsPrivate() && text != "" {
		r.reply(chatID, helpText(r.cfg.Mode))
	}
}

// lookup resolves query and offers the quality keyboard.
func (r *Router) lookup(ctx context.Context, msg *tgbotapi.Message, query string) {
	chatID := msg.Chat.ID
	if query == "" {
		r.reply(chatID, "⚠️ Usage: <code>/search words</code> or <code>بحث words</code>")
		return
	}
	if !r.limiter.Allow(msg.From.ID) {
		r.reply(chatID, "⏳ Too many requests. Wait a moment and try again.")
		return
	}

	statusID, err := r.gw.Post(chatID, "🔍 <b>Searching…</b>")
	if err != nil {
		r.log.Warn("send status message", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
		return
	}
	chat := session.Chat{ChatID: chatID, MessageID: statusID}

	res := r.coord.OnSearchOrUrl(ctx, coordinator.LookupRequest{OwnerID: msg.From.ID, Chat: chat, Text: query})
	if !res.OK() {
		if err := r.gw.EditText(ctx, chat, coordinator.FailureText(res.Code, r.cfg.MaxUploadBytes, 0)); err != nil {
			r.log.Debug("show lookup failure", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
		}
		return
	}

	text := coordinator.ReferenceSummary(res.Session.Reference) + "\n\n📥 <b>Pick a quality:</b>"
	if err := r.gw.EditKeyboard(chat, text, qualityKeyboard(res.Session)); err != nil {
		r.log.Warn("show quality keyboard",
			slog.String("session_id", string(res.Session.ID)),
			slog.String("error", err.Error()))
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	sid, idx, ok := parseQualityData(cb.Data)
	if !ok {
		r.answer(cb.ID, "Unknown action.", false)
		return
	}
	encodingID, ok := r.coord.EncodingAt(sid, idx)
	if !ok {
		r.answer(cb.ID, coordinator.FailureText(coordinator.CodeExpired, r.cfg.MaxUploadBytes, 0), true)
		return
	}

	res := r.coord.OnEncodingChosen(ctx, cb.From.ID, sid, encodingID)
	switch res.Code {
	case coordinator.CodeStarted:
		r.answer(cb.ID, "⬇️ Download started", false)
	case coordinator.CodeNotFound:
		r.answer(cb.ID, coordinator.FailureText(coordinator.CodeExpired, r.cfg.MaxUploadBytes, 0), true)
	case coordinator.CodePayloadTooLarge, coordinator.CodeUnauthorized, coordinator.CodeAlreadyDownloading:
		r.answer(cb.ID, coordinator.FailureText(res.Code, r.cfg.MaxUploadBytes, 0), true)
	default:
		r.answer(cb.ID, coordinator.FailureText(res.Code, r.cfg.MaxUploadBytes, 0), false)
	}
}

func (r *Router) reply(chatID int64, text string) {
	if err := r.gw.SendText(context.Background(), chatID, text); err != nil {
		r.log.Debug("reply failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (r *Router) answer(callbackID, text string, alert bool) {
	if err := r.gw.Answer(callbackID, text, alert); err != nil {
		r.log.Debug("answer callback failed", slog.String("error", err.Error()))
	}
}

func welcomeText(name string, mode media.Mode) string {
	what := "video"
	if mode == media.ModeAudio {
		what = "audio"
	}
	return fmt.Sprintf("👋 Hi %s!\n\nSend me a YouTube link or search with "+
		"<code>/search words</code> (or <code>بحث words</code>). "+
		"I will show the available qualities and send the %s back here.",
		html.EscapeString(name), what)
}

func helpText(mode media.Mode) string {
	lines := []string{
		"<b>How to use</b>",
		"• Paste a YouTube link (watch, youtu.be, shorts or embed).",
		"• Or search: <code>/search words</code> or <code>بحث words</code>.",
		"• Pick a quality from the buttons under the result.",
	}
	if mode == media.ModeAudio {
		lines = append(lines, "• Files arrive as audio tracks.")
	}
	return strings.Join(lines, "\n")
}
