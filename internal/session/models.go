package session

import (
	"time"

	"tube-courier/internal/media"
)

// ID uniquely identifies a session.
type ID string

// State is a session's position in the selection/download lifecycle.
type State string

const (
	AwaitingSelection State = "awaiting_selection"
	Downloading       State = "downloading"
	Delivered         State = "delivered"
	Failed            State = "failed"
	Expired           State = "expired"
)

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == Delivered || s == Failed || s == Expired
}

// Chat locates the conversation and the bot message that carries the
// keyboard and, later, the progress text.
type Chat struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// Session is one user's lookup plus the encodings offered for it.
type Session struct {
	ID        ID                     `json:"id"`
	OwnerID   int64                  `json:"owner_id"`
	Chat      Chat                   `json:"chat"`
	Reference media.Reference        `json:"reference"`
	Options   []media.EncodingOption `json:"options"`
	State     State                  `json:"state"`
	Chosen    string                 `json:"chosen,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`

	// Failure is the result code that moved the session to Failed.
	Failure string `json:"failure,omitempty"`
}

// Option returns the offered encoding with the given id.
func (s Session) Option(encodingID string) (media.EncodingOption, bool) {
	for _, o := range s.Options {
		if o.ID == encodingID {
			return o, true
		}
	}
	return media.EncodingOption{}, false
}

// clone returns a copy that shares no slices with s.
func (s *Session) clone() Session {
	c := *s
	if s.Options != nil {
		c.Options = make([]media.EncodingOption, len(s.Options))
		copy(c.Options, s.Options)
	}
	return c
}
