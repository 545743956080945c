package telegram

import (
	"context"
	"log/slog"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many updates are handled at once.
const DefaultConcurrency = 16

// updateSource is the subset of *tgbotapi.BotAPI used for long polling.
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler processes a single update.
type Handler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Dispatcher runs update handlers on a bounded pool. Updates arrive either
// from Poll or from Submit (webhook).
type Dispatcher struct {
	handler Handler
	group   *errgroup.Group
	ctx     context.Context
	log     *slog.Logger
}

// NewDispatcher returns a Dispatcher whose handlers run under ctx.
func NewDispatcher(ctx context.Context, handler Handler, concurrency int, log *slog.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	g := &errgroup.Group{}
	g.SetLimit(concurrency)
	return &Dispatcher{
		handler: handler,
		group:   g,
		ctx:     ctx,
		log:     log.With(slog.String("component", "dispatcher")),
	}
}

// Submit schedules update, blocking while the pool is full.
func (d *Dispatcher) Submit(update tgbotapi.Update) {
	d.group.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("update handler panic",
					slog.Int("update_id", update.UpdateID),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()
		d.handler.HandleUpdate(d.ctx, update)
		return nil
	})
}

// Poll receives updates by long polling until ctx is done, then waits for
// in-flight handlers.
func (d *Dispatcher) Poll(ctx context.Context, bot updateSource) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := bot.GetUpdatesChan(u)

	d.log.Info("long polling started")
	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return d.Wait()
		case update, ok := <-updates:
			if !ok {
				return d.Wait()
			}
			d.Submit(update)
		}
	}
}

// Wait blocks until every submitted handler has returned.
func (d *Dispatcher) Wait() error {
	return d.group.Wait()
}
