package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// progressInterval is how often yt-dlp progress is sampled.
const progressInterval = 500 * time.Millisecond

// notFoundMarkers are yt-dlp stderr fragments that mean the reference does not exist.
var notFoundMarkers = []string{
	"video unavailable",
	"private video",
	"this video has been removed",
	"is not a valid url",
	"unsupported url",
	"does not exist",
	"http error 404",
}

// YTDLPConfig configures the yt-dlp backed Source.
type YTDLPConfig struct {
	Mode            Mode
	MaxHeight       int
	LookupTimeout   time.Duration
	DownloadTimeout time.Duration
}

// YTDLP is a Source that shells out to yt-dlp through go-ytdlp.
type YTDLP struct {
	cfg YTDLPConfig
	log *slog.Logger
}

// NewYTDLP returns a Source backed by the yt-dlp binary on PATH.
func NewYTDLP(cfg YTDLPConfig, log *slog.Logger) *YTDLP {
	if cfg.Mode == "" {
		cfg.Mode = ModeVideo
	}
	return &YTDLP{cfg: cfg, log: log.With(slog.String("component", "media"))}
}

// Install downloads a yt-dlp binary into the go-ytdlp cache when none is
// available.
func Install(ctx context.Context) error {
	_, err := ytdlp.Install(ctx, nil)
	return err
}

// Lookup implements Source.Lookup.
func (y *YTDLP) Lookup(ctx context.Context, query string) (Info, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Info{}, ErrNotFound
	}
	if y.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.cfg.LookupTimeout)
		defer cancel()
	}

	target := resolveTarget(query)
	cmd := ytdlp.New().
		DumpSingleJSON().
		SkipDownload().
		NoWarnings()
	if !strings.HasPrefix(target, "ytsearch") {
		cmd.NoPlaylist()
	}

	start := time.Now()
	res, err := cmd.Run(ctx, target)
	if err != nil {
		return Info{}, classifyRunError(res, err)
	}

	raw, err := parseInfo([]byte(res.Stdout))
	if err != nil {
		return Info{}, err
	}
	info := buildInfo(raw, y.cfg.Mode, y.cfg.MaxHeight)

	y.log.Debug("lookup resolved",
		slog.String("media_id", info.Reference.ID),
		slog.Int("encodings", len(info.Options)),
		slog.Int("duration_ms", int(time.Since(start).Milliseconds())))
	return info, nil
}

// Fetch implements Source.Fetch.
func (y *YTDLP) Fetch(ctx context.Context, ref Reference, encodingID, destination string, onProgress ProgressFunc) (File, error) {
	if y.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.cfg.DownloadTimeout)
		defer cancel()
	}

	gate := newProgressGate(onProgress)
	cmd := ytdlp.New().
		Format(encodingID).
		Output(destination).
		NoPlaylist().
		NoWarnings().
		ForceOverwrites()
	cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		if p := percentOf(int64(update.DownloadedBytes), int64(update.TotalBytes)); p >= 0 {
			gate.report(p)
		}
	})

	if _, err := cmd.Run(ctx, sourceURL(ref)); err != nil {
		RemovePartials(destination)
		return File{}, fmt.Errorf("%w: %v", ErrDownload, err)
	}

	st, err := os.Stat(destination)
	if err != nil {
		RemovePartials(destination)
		return File{}, fmt.Errorf("%w: output missing: %v", ErrDownload, err)
	}
	gate.report(100)

	return File{Path: destination, Size: st.Size()}, nil
}

// rawInfo is the subset of yt-dlp's info dict we read. Searches produce a
// playlist whose entries are videos.
type rawInfo struct {
	Type       string      `json:"_type"`
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader"`
	Channel    string      `json:"channel"`
	Duration   float64     `json:"duration"`
	WebpageURL string      `json:"webpage_url"`
	Thumbnail  string      `json:"thumbnail"`
	Formats    []rawFormat `json:"formats"`
	Entries    []rawInfo   `json:"entries"`
}

// parseInfo decodes --dump-single-json output and unwraps the first search hit.
func parseInfo(out []byte) (rawInfo, error) {
	var raw rawInfo
	if err := json.Unmarshal(out, &raw); err != nil {
		return rawInfo{}, fmt.Errorf("%w: decode yt-dlp output: %v", ErrUpstream, err)
	}
	if raw.Type == "playlist" || raw.Entries != nil {
		if len(raw.Entries) == 0 {
			return rawInfo{}, ErrNotFound
		}
		raw = raw.Entries[0]
	}
	if raw.ID == "" {
		return rawInfo{}, ErrNotFound
	}
	return raw, nil
}

func buildInfo(raw rawInfo, mode Mode, maxHeight int) Info {
	uploader := raw.Uploader
	if uploader == "" {
		uploader = raw.Channel
	}
	duration := int(raw.Duration + 0.5)
	ref := Reference{
		ID:              raw.ID,
		Title:           raw.Title,
		Uploader:        uploader,
		DurationSeconds: duration,
		SourceURL:       raw.WebpageURL,
		Thumbnail:       raw.Thumbnail,
	}
	if ref.SourceURL == "" {
		ref.SourceURL = sourceURL(ref)
	}
	return Info{
		Reference: ref,
		Options:   selectEncodings(raw.Formats, mode, maxHeight, duration),
	}
}

func sourceURL(ref Reference) string {
	if ref.SourceURL != "" {
		return ref.SourceURL
	}
	return "https://www.youtube.com/watch?v=" + ref.ID
}

// classifyRunError maps a failed yt-dlp run to ErrNotFound or ErrUpstream.
func classifyRunError(res *ytdlp.Result, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	msg := err.Error()
	if res != nil && res.Stderr != "" {
		msg = res.Stderr
	}
	lower := strings.ToLower(msg)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", ErrNotFound, firstLine(msg))
		}
	}
	return fmt.Errorf("%w: %s", ErrUpstream, firstLine(msg))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// RemovePartials deletes destination and the side files yt-dlp leaves behind.
// Missing files are ignored.
func RemovePartials(destination string) {
	for _, p := range []string{destination, destination + ".part", destination + ".ytdl"} {
		_ = os.Remove(p)
	}
}
