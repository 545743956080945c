package telegram

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/goleak"

	"tube-courier/internal/platform/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingHandler struct {
	n     atomic.Int32
	panic bool
}

func (h *countingHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	h.n.Add(1)
	if h.panic {
		panic("boom")
	}
}

type fakeUpdates struct {
	ch      chan tgbotapi.Update
	stopped atomic.Bool
	once    sync.Once
}

func (f *fakeUpdates) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.ch
}

func (f *fakeUpdates) StopReceivingUpdates() {
	f.stopped.Store(true)
	f.once.Do(func() { close(f.ch) })
}

func TestDispatcher_Submit(t *testing.T) {
	h := &countingHandler{}
	d := NewDispatcher(context.Background(), h, 2, logger.Discard())

	for i := 0; i < 10; i++ {
		d.Submit(tgbotapi.Update{UpdateID: i})
	}
	if err := d.Wait(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := h.n.Load(); got != 10 {
		t.Errorf("expected 10 handled updates, got %d", got)
	}
}

func TestDispatcher_panic_is_contained(t *testing.T) {
	h := &countingHandler{panic: true}
	d := NewDispatcher(context.Background(), h, 0, logger.Discard())

	d.Submit(tgbotapi.Update{UpdateID: 1})
	d.Submit(tgbotapi.Update{UpdateID: 2})
	if err := d.Wait(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := h.n.Load(); got != 2 {
		t.Errorf("expected 2 handled updates, got %d", got)
	}
}

func TestDispatcher_Poll(t *testing.T) {
	h := &countingHandler{}
	d := NewDispatcher(context.Background(), h, 4, logger.Discard())
	src := &fakeUpdates{ch: make(chan tgbotapi.Update, 3)}
	for i := 0; i < 3; i++ {
		src.ch <- tgbotapi.Update{UpdateID: i}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Poll(ctx, src) }()

	deadline := time.After(2 * time.Second)
	for h.n.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected 3 handled updates, got %d", h.n.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not return after cancel")
	}
	if !src.stopped.Load() {
		t.Error("expected updates to be stopped")
	}
}
