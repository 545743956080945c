package coordinator

import (
	"context"
	"errors"

	"tube-courier/internal/media"
	"tube-courier/internal/session"
)

// Delivery errors. Gateways wrap one of these so the coordinator can classify
// a failed upload.
var (
	ErrUnauthorized    = errors.New("chat refused delivery")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrTransport       = errors.New("transport failure")
)

// Caption describes an uploaded file.
type Caption struct {
	Title           string
	Performer       string
	DurationSeconds int
	// HTML is the formatted caption text.
	HTML string
}

// Delivery sends results back to the chat.
type Delivery interface {
	SendFile(ctx context.Context, chat session.Chat, file media.File, mode media.Mode, caption Caption) error
	SendText(ctx context.Context, chatID int64, html string) error
	EditText(ctx context.Context, chat session.Chat, html string) error
}

// deliveryCode maps a Delivery error to a result code.
func deliveryCode(err error) Code {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrPayloadTooLarge):
		return CodePayloadTooLarge
	default:
		return CodeTransport
	}
}
