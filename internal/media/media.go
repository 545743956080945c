// Package media resolves user references into downloadable media and fetches
// a chosen encoding to local disk.
package media

import (
	"context"
	"errors"
)

// Mode selects which encodings a lookup offers.
type Mode string

const (
	// ModeVideo offers progressive formats (audio and video in one file).
	ModeVideo Mode = "video"
	// ModeAudio offers audio-only formats.
	ModeAudio Mode = "audio"
)

var (
	// ErrNotFound is returned when a reference resolves to nothing.
	ErrNotFound = errors.New("media not found")
	// ErrUpstream is returned when the media platform or the extractor fails.
	ErrUpstream = errors.New("upstream failure")
	// ErrDownload wraps every Fetch failure.
	ErrDownload = errors.New("download failed")
)

// Reference identifies a piece of media. Immutable once fetched.
type Reference struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Uploader        string `json:"uploader,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	SourceURL       string `json:"source_url"`
	Thumbnail       string `json:"thumbnail,omitempty"`
}

// EncodingOption is one downloadable rendition of a Reference.
// EstimatedSize is 0 when unknown.
type EncodingOption struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	EstimatedSize int64  `json:"estimated_size,omitempty"`
	Container     string `json:"container"`
	Height        int    `json:"height,omitempty"`
	AudioBitrate  int    `json:"audio_bitrate,omitempty"`
}

// Info is the result of a successful lookup.
type Info struct {
	Reference Reference
	Options   []EncodingOption
}

// File is a fetched artifact on local disk.
type File struct {
	Path string
	Size int64
}

// ProgressFunc receives integer percentages in [0, 100].
type ProgressFunc func(percent int)

// Source is the media platform adapter.
type Source interface {
	// Lookup resolves a URL or free-text query. Free text resolves to the
	// first search hit. Fails with ErrNotFound or ErrUpstream.
	Lookup(ctx context.Context, query string) (Info, error)

	// Fetch downloads encodingID of ref into destination. onProgress sees
	// non-decreasing percentages with no repeats. On failure any partial
	// file is removed and the error wraps ErrDownload.
	Fetch(ctx context.Context, ref Reference, encodingID, destination string, onProgress ProgressFunc) (File, error)
}
