package coordinator

import (
	"context"
	"sync"

	"tube-courier/internal/session"
)

type activeEntry struct {
	sessionID session.ID
	path      string
	cancel    context.CancelFunc
	progress  int
}

// ActiveDownloads holds at most one in-flight download per media id.
type ActiveDownloads struct {
	mu        sync.Mutex
	byMedia   map[string]*activeEntry
	bySession map[session.ID]string
}

// NewActiveDownloads returns an empty table.
func NewActiveDownloads() *ActiveDownloads {
	return &ActiveDownloads{
		byMedia:   make(map[string]*activeEntry),
		bySession: make(map[session.ID]string),
	}
}

// TryAcquire registers sid as the downloader of mediaID. If another entry
// holds mediaID it returns that holder and false.
func (a *ActiveDownloads) TryAcquire(mediaID string, sid session.ID, path string, cancel context.CancelFunc) (session.ID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.byMedia[mediaID]; ok {
		return e.sessionID, false
	}
	a.byMedia[mediaID] = &activeEntry{sessionID: sid, path: path, cancel: cancel}
	a.bySession[sid] = mediaID
	return sid, true
}

// ReleaseIf removes the entry for mediaID only while sid still holds it.
func (a *ActiveDownloads) ReleaseIf(mediaID string, sid session.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.byMedia[mediaID]
	if !ok || e.sessionID != sid {
		return false
	}
	delete(a.byMedia, mediaID)
	delete(a.bySession, sid)
	return true
}

// CancelSession cancels and releases the download owned by sid and returns
// its destination path.
func (a *ActiveDownloads) CancelSession(sid session.ID) (string, bool) {
	a.mu.Lock()
	mediaID, ok := a.bySession[sid]
	if !ok {
		a.mu.Unlock()
		return "", false
	}
	e := a.byMedia[mediaID]
	delete(a.byMedia, mediaID)
	delete(a.bySession, sid)
	a.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	return e.path, true
}

// CancelAll cancels every in-flight download. Entries are released by their
// tasks as they exit.
func (a *ActiveDownloads) CancelAll() {
	a.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(a.byMedia))
	for _, e := range a.byMedia {
		if e.cancel != nil {
			cancels = append(cancels, e.cancel)
		}
	}
	a.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// SetProgress records percent for sid if it advances the stored value.
func (a *ActiveDownloads) SetProgress(sid session.ID, percent int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	mediaID, ok := a.bySession[sid]
	if !ok {
		return false
	}
	e := a.byMedia[mediaID]
	if percent <= e.progress {
		return false
	}
	e.progress = percent
	return true
}

// Progress returns the last recorded percentage for sid.
func (a *ActiveDownloads) Progress(sid session.ID) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	mediaID, ok := a.bySession[sid]
	if !ok {
		return 0, false
	}
	return a.byMedia[mediaID].progress, true
}

// Holder returns the session downloading mediaID, if any.
func (a *ActiveDownloads) Holder(mediaID string) (session.ID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.byMedia[mediaID]
	if !ok {
		return "", false
	}
	return e.sessionID, true
}

// Paths returns the destination paths of all in-flight downloads.
func (a *ActiveDownloads) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.byMedia))
	for _, e := range a.byMedia {
		out = append(out, e.path)
	}
	return out
}

// Len returns the number of in-flight downloads.
func (a *ActiveDownloads) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byMedia)
}
