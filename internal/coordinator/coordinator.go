// Package coordinator drives a session from lookup through quality selection,
// download and delivery.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	"tube-courier/internal/media"
	"tube-courier/internal/platform/metrics"
	"tube-courier/internal/session"
)

// DefaultProgressInterval bounds how often the progress message is edited.
const DefaultProgressInterval = 3 * time.Second

// notifyTimeout bounds best-effort chat updates made outside a request.
const notifyTimeout = 10 * time.Second

var (
	// ErrNoEncodings is returned when a lookup yields no usable encoding.
	ErrNoEncodings = errors.New("no downloadable encodings")
	// ErrShuttingDown is returned once Shutdown has started.
	ErrShuttingDown = errors.New("coordinator is shutting down")
)

// Config holds coordinator limits.
type Config struct {
	Mode             media.Mode
	MaxUploadBytes   int64
	SessionTTL       time.Duration
	TerminalGrace    time.Duration
	DownloadDir      string
	ProgressInterval time.Duration
}

// LookupRequest is a search or URL message from a user.
type LookupRequest struct {
	OwnerID int64
	Chat    session.Chat
	Text    string
}

// Coordinator owns session state transitions and download tasks.
type Coordinator struct {
	cfg      Config
	repo     session.Repository
	source   media.Source
	delivery Delivery
	active   *ActiveDownloads
	tasks    taskGroup
	log      *slog.Logger
	metrics  *metrics.Metrics

	baseCtx   context.Context
	cancelAll context.CancelFunc
}

// New returns a Coordinator. Metrics may be nil to disable metric recording.
func New(cfg Config, repo session.Repository, source media.Source, delivery Delivery, log *slog.Logger, m *metrics.Metrics) *Coordinator {
	if cfg.Mode == "" {
		cfg.Mode = media.ModeVideo
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:       cfg,
		repo:      repo,
		source:    source,
		delivery:  delivery,
		active:    NewActiveDownloads(),
		log:       log.With(slog.String("component", "coordinator")),
		metrics:   m,
		baseCtx:   ctx,
		cancelAll: cancel,
	}
}

// Active exposes the in-flight download table.
func (c *Coordinator) Active() *ActiveDownloads {
	return c.active
}

// Config returns the coordinator limits.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// OnSearchOrUrl resolves req.Text and opens a session offering its encodings.
func (c *Coordinator) OnSearchOrUrl(ctx context.Context, req LookupRequest) Result {
	info, err := c.source.Lookup(ctx, req.Text)
	if err != nil {
		code := CodeUpstream
		if errors.Is(err, media.ErrNotFound) {
			code = CodeNotFound
		}
		c.log.Info("lookup failed",
			slog.Int64("owner_id", req.OwnerID),
			slog.String("code", string(code)),
			slog.String("error", err.Error()))
		c.metrics.IncLookupFailed(string(code))
		return fail(code, err)
	}
	if len(info.Options) == 0 {
		c.metrics.IncLookupFailed(string(CodeNotFound))
		return fail(CodeNotFound, fmt.Errorf("%s: %w", info.Reference.ID, ErrNoEncodings))
	}

	sess, err := c.repo.Create(req.OwnerID, req.Chat, info.Reference, info.Options)
	if err != nil {
		c.log.Error("create session", slog.String("error", err.Error()))
		return fail(CodeUpstream, err)
	}
	c.metrics.IncSessionsCreated()
	c.log.Info("session created",
		slog.String("session_id", string(sess.ID)),
		slog.Int64("owner_id", sess.OwnerID),
		slog.String("media_id", sess.Reference.ID),
		slog.Int("encodings", len(sess.Options)))
	return Result{Code: CodeOK, Session: sess}
}

// OnEncodingChosen starts the download of encodingID for the session.
func (c *Coordinator) OnEncodingChosen(ctx context.Context, ownerID int64, sid session.ID, encodingID string) Result {
	res := c.choose(ownerID, sid, encodingID)
	c.metrics.IncSelection(string(res.Code))
	if !res.OK() {
		c.log.Debug("selection rejected",
			slog.String("session_id", string(sid)),
			slog.Int64("owner_id", ownerID),
			slog.String("code", string(res.Code)))
	}
	return res
}

func (c *Coordinator) choose(ownerID int64, sid session.ID, encodingID string) Result {
	sess, err := c.repo.Get(sid)
	if err != nil {
		return fail(CodeNotFound, err)
	}
	if sess.OwnerID != ownerID {
		return Result{Code: CodeUnauthorized, Session: sess}
	}
	if sess.State != session.AwaitingSelection {
		return Result{Code: CodeAlreadyProcessed, Session: sess}
	}
	opt, ok := sess.Option(encodingID)
	if !ok {
		return Result{Code: CodeNotFound, Session: sess, Err: fmt.Errorf("encoding %q not offered", encodingID)}
	}
	if opt.EstimatedSize > c.cfg.MaxUploadBytes {
		return Result{Code: CodePayloadTooLarge, Session: sess,
			Err: fmt.Errorf("estimated %s exceeds %s", FormatSize(opt.EstimatedSize), FormatSize(c.cfg.MaxUploadBytes))}
	}
	if c.tasks.Closing() {
		return Result{Code: CodeTransport, Session: sess, Err: ErrShuttingDown}
	}

	mediaID := sess.Reference.ID
	dest := c.destination(sid, opt)
	taskCtx, cancel := context.WithCancel(c.baseCtx)

	holder, ok := c.active.TryAcquire(mediaID, sid, dest, cancel)
	if !ok {
		cancel()
		if holder == sid {
			return Result{Code: CodeAlreadyProcessed, Session: sess}
		}
		return Result{Code: CodeAlreadyDownloading, Session: sess}
	}

	sess, err = c.repo.Transition(sid, []session.State{session.AwaitingSelection}, session.Downloading, func(s *session.Session) {
		s.Chosen = opt.ID
	})
	if err != nil {
		c.active.ReleaseIf(mediaID, sid)
		cancel()
		if errors.Is(err, session.ErrNotFound) {
			return fail(CodeNotFound, err)
		}
		return Result{Code: CodeAlreadyProcessed, Session: sess, Err: err}
	}

	started := c.tasks.Go(func() {
		defer cancel()
		c.runDownload(taskCtx, sess, opt, dest)
	})
	if !started {
		c.active.ReleaseIf(mediaID, sid)
		cancel()
		sess, _ = c.markFailed(sid, CodeTransport)
		return Result{Code: CodeTransport, Session: sess, Err: ErrShuttingDown}
	}

	c.log.Info("download started",
		slog.String("session_id", string(sid)),
		slog.String("media_id", mediaID),
		slog.String("encoding", opt.ID))
	return Result{Code: CodeStarted, Session: sess}
}

// EncodingAt resolves the idx-th offered encoding of a session. Callback
// payloads carry the index to stay within the platform's size limit.
func (c *Coordinator) EncodingAt(sid session.ID, idx int) (string, bool) {
	sess, err := c.repo.Get(sid)
	if err != nil || idx < 0 || idx >= len(sess.Options) {
		return "", false
	}
	return sess.Options[idx].ID, true
}

// Session returns the current snapshot of a session.
func (c *Coordinator) Session(sid session.ID) (session.Session, error) {
	return c.repo.Get(sid)
}

// Progress returns the download percentage of a session. Delivered sessions
// report 100.
func (c *Coordinator) Progress(sid session.ID) (int, bool) {
	if p, ok := c.active.Progress(sid); ok {
		return p, true
	}
	sess, err := c.repo.Get(sid)
	if err != nil {
		return 0, false
	}
	switch sess.State {
	case session.Delivered:
		return 100, true
	case session.Downloading, session.AwaitingSelection:
		return 0, true
	}
	return 0, false
}

// ExpireSessions sweeps the repository, cancels downloads owned by expired
// sessions and removes their partial files. It returns the number of sessions
// removed.
func (c *Coordinator) ExpireSessions(ctx context.Context) int {
	removed := c.repo.SweepExpired(c.cfg.SessionTTL, c.cfg.TerminalGrace)
	expired := 0
	for _, sess := range removed {
		if sess.State != session.Expired {
			continue
		}
		expired++
		if path, ok := c.active.CancelSession(sess.ID); ok {
			media.RemovePartials(path)
			c.log.Info("in-flight download expired",
				slog.String("session_id", string(sess.ID)),
				slog.String("media_id", sess.Reference.ID))
		}
		c.notify(ctx, sess.Chat, expiredText())
	}
	c.metrics.AddSessionsExpired(expired)
	if len(removed) > 0 {
		c.log.Info("sessions swept", slog.Int("removed", len(removed)), slog.Int("expired", expired))
	}
	return len(removed)
}

// Shutdown stops accepting downloads, cancels in-flight ones and waits for
// their tasks to exit or ctx to end.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.active.CancelAll()
	c.cancelAll()
	return c.tasks.CloseAndWait(ctx)
}

func (c *Coordinator) destination(sid session.ID, opt media.EncodingOption) string {
	ext := opt.Container
	if ext == "" {
		ext = "bin"
	}
	return filepath.Join(c.cfg.DownloadDir, string(sid)+"."+ext)
}

// runDownload fetches, checks and delivers the chosen encoding. The
// ActiveDownload entry is released on every exit path.
func (c *Coordinator) runDownload(ctx context.Context, sess session.Session, opt media.EncodingOption, dest string) {
	start := time.Now()
	sid, mediaID := sess.ID, sess.Reference.ID
	log := c.log.With(slog.String("session_id", string(sid)), slog.String("media_id", mediaID))

	defer c.active.ReleaseIf(mediaID, sid)
	defer func() {
		if r := recover(); r != nil {
			log.Error("download task panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			media.RemovePartials(dest)
			if _, err := c.markFailed(sid, CodeUpstream); err == nil {
				c.notify(ctx, sess.Chat, FailureText(CodeUpstream, c.cfg.MaxUploadBytes, 0))
			}
			c.metrics.ObserveDownload("panic", time.Since(start))
		}
	}()

	c.notify(ctx, sess.Chat, progressText(sess.Reference, opt, 0))

	limiter := rate.NewLimiter(rate.Every(c.cfg.ProgressInterval), 1)
	limiter.Allow()
	onProgress := func(p int) {
		if !c.active.SetProgress(sid, p) {
			return
		}
		if p < 100 && !limiter.Allow() {
			return
		}
		c.notify(ctx, sess.Chat, progressText(sess.Reference, opt, p))
	}

	file, err := c.source.Fetch(ctx, sess.Reference, opt.ID, dest, onProgress)
	if err != nil {
		if !c.stillDownloading(sid) {
			log.Info("download discarded", slog.String("error", err.Error()))
			c.metrics.ObserveDownload("discarded", time.Since(start))
			return
		}
		log.Warn("download failed", slog.String("error", err.Error()))
		c.finishFailed(ctx, sess, CodeUpstream, 0)
		c.metrics.ObserveDownload(string(CodeUpstream), time.Since(start))
		return
	}
	defer removeFile(log, file.Path)

	if file.Size > c.cfg.MaxUploadBytes {
		log.Info("download exceeds upload cap",
			slog.Int64("size", file.Size),
			slog.Int64("cap", c.cfg.MaxUploadBytes))
		c.finishFailed(ctx, sess, CodePayloadTooLarge, file.Size)
		c.metrics.ObserveDownload(string(CodePayloadTooLarge), time.Since(start))
		return
	}
	if !c.stillDownloading(sid) {
		log.Info("download discarded after fetch")
		c.metrics.ObserveDownload("discarded", time.Since(start))
		return
	}

	c.notify(ctx, sess.Chat, uploadingText(sess.Reference, file.Size))
	if err := c.delivery.SendFile(ctx, sess.Chat, file, c.cfg.Mode, captionFor(sess.Reference, opt, file.Size)); err != nil {
		code := deliveryCode(err)
		log.Warn("delivery failed", slog.String("code", string(code)), slog.String("error", err.Error()))
		c.finishFailed(ctx, sess, code, file.Size)
		c.metrics.ObserveDownload(string(code), time.Since(start))
		return
	}

	if _, err := c.repo.Transition(sid, []session.State{session.Downloading}, session.Delivered); err != nil {
		log.Info("session changed during delivery", slog.String("error", err.Error()))
	}
	c.metrics.AddBytesDelivered(file.Size)
	c.metrics.ObserveDownload("delivered", time.Since(start))
	c.notify(ctx, sess.Chat, deliveredText(sess.Reference))
	log.Info("download delivered",
		slog.Int64("size", file.Size),
		slog.Int("duration_ms", int(time.Since(start).Milliseconds())))
}

// finishFailed moves the session to Failed and tells the user, unless the
// session was expired in the meantime.
func (c *Coordinator) finishFailed(ctx context.Context, sess session.Session, code Code, actual int64) {
	if _, err := c.markFailed(sess.ID, code); err != nil {
		return
	}
	c.notify(ctx, sess.Chat, FailureText(code, c.cfg.MaxUploadBytes, actual))
}

func (c *Coordinator) markFailed(sid session.ID, code Code) (session.Session, error) {
	return c.repo.Transition(sid, []session.State{session.Downloading}, session.Failed, func(s *session.Session) {
		s.Failure = string(code)
	})
}

func (c *Coordinator) stillDownloading(sid session.ID) bool {
	sess, err := c.repo.Get(sid)
	return err == nil && sess.State == session.Downloading
}

// notify edits the session's bot message. Failures are logged and dropped.
func (c *Coordinator) notify(ctx context.Context, chat session.Chat, text string) {
	if c.delivery == nil || chat.ChatID == 0 {
		return
	}
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := c.delivery.EditText(ctx, chat, text); err != nil {
		c.log.Debug("chat update failed",
			slog.Int64("chat_id", chat.ChatID),
			slog.String("error", err.Error()))
	}
}

func removeFile(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("remove delivered file", slog.String("path", path), slog.String("error", err.Error()))
	}
}
