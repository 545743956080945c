package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tube-courier/internal/coordinator"
	"tube-courier/internal/session"
)

// fakeBot records every Chattable and returns increasing message ids.
type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	sendErr  error
	reqErr   error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return tgbotapi.Message{}, b.sendErr
	}
	b.sent = append(b.sent, c)
	b.nextID++
	return tgbotapi.Message{MessageID: 100 + b.nextID}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reqErr != nil {
		return nil, b.reqErr
	}
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) messages() []tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range b.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBot) edits() []tgbotapi.EditMessageTextConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range b.requests {
		if m, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBot) answers() []tgbotapi.CallbackConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range b.requests {
		if m, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

type chosenCall struct {
	owner      int64
	sid        session.ID
	encodingID string
}

// fakeCoordinator returns canned results and records calls.
type fakeCoordinator struct {
	mu        sync.Mutex
	lookups   []coordinator.LookupRequest
	chosen    []chosenCall
	lookupRes coordinator.Result
	chooseRes coordinator.Result
	encodings map[session.ID][]string
}

func (f *fakeCoordinator) OnSearchOrUrl(ctx context.Context, req coordinator.LookupRequest) coordinator.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, req)
	return f.lookupRes
}

func (f *fakeCoordinator) OnEncodingChosen(ctx context.Context, ownerID int64, sid session.ID, encodingID string) coordinator.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chosen = append(f.chosen, chosenCall{owner: ownerID, sid: sid, encodingID: encodingID})
	return f.chooseRes
}

func (f *fakeCoordinator) EncodingAt(sid session.ID, idx int) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	encs := f.encodings[sid]
	if idx < 0 || idx >= len(encs) {
		return "", false
	}
	return encs[idx], true
}

func textMessage(chatType string, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Sam"},
		Chat:      &tgbotapi.Chat{ID: 77, Type: chatType},
		Text:      text,
	}}
}

func commandMessage(userID int64, command, args string) tgbotapi.Update {
	text := "/" + command
	if args != "" {
		text += " " + args
	}
	u := textMessage("private", userID, text)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}}
	return u
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: userID},
		Data: data,
	}}
}
