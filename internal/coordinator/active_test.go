package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveDownloads_acquire_release(t *testing.T) {
	a := NewActiveDownloads()

	holder, ok := a.TryAcquire("m1", "s1", "/tmp/s1.mp4", nil)
	assert.True(t, ok)
	assert.Equal(t, "s1", string(holder))

	holder, ok = a.TryAcquire("m1", "s2", "/tmp/s2.mp4", nil)
	assert.False(t, ok)
	assert.Equal(t, "s1", string(holder))

	assert.False(t, a.ReleaseIf("m1", "s2"), "non-holder cannot release")
	assert.True(t, a.ReleaseIf("m1", "s1"))
	assert.False(t, a.ReleaseIf("m1", "s1"))

	_, ok = a.TryAcquire("m1", "s2", "/tmp/s2.mp4", nil)
	assert.True(t, ok)
	assert.Equal(t, []string{"/tmp/s2.mp4"}, a.Paths())
}

func TestActiveDownloads_progress(t *testing.T) {
	a := NewActiveDownloads()
	_, _ = a.TryAcquire("m1", "s1", "", nil)

	assert.True(t, a.SetProgress("s1", 10))
	assert.False(t, a.SetProgress("s1", 10))
	assert.False(t, a.SetProgress("s1", 5))
	assert.False(t, a.SetProgress("other", 50))

	p, ok := a.Progress("s1")
	assert.True(t, ok)
	assert.Equal(t, 10, p)
}

func TestActiveDownloads_CancelSession(t *testing.T) {
	a := NewActiveDownloads()
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = a.TryAcquire("m1", "s1", "/tmp/s1.mp4", cancel)

	path, ok := a.CancelSession("s1")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/s1.mp4", path)
	assert.Error(t, ctx.Err())
	assert.Equal(t, 0, a.Len())

	// The task's own release after cancellation must not disturb a new holder.
	_, _ = a.TryAcquire("m1", "s2", "", nil)
	assert.False(t, a.ReleaseIf("m1", "s1"))
	holder, _ := a.Holder("m1")
	assert.Equal(t, "s2", string(holder))

	_, ok = a.CancelSession("s1")
	assert.False(t, ok)
}

func TestActiveDownloads_CancelAll(t *testing.T) {
	a := NewActiveDownloads()
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	_, _ = a.TryAcquire("m1", "s1", "", cancel1)
	_, _ = a.TryAcquire("m2", "s2", "", cancel2)

	a.CancelAll()

	assert.Error(t, ctx1.Err())
	assert.Error(t, ctx2.Err())
	assert.Equal(t, 2, a.Len(), "entries are released by their tasks")
}
