package directory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actorcluster/actorcluster/pkg/events"
	"github.com/actorcluster/actorcluster/pkg/types"
)

func newTestDirectory(t *testing.T, tableSize int) *Directory {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	require.NoError(t, CreateBackingFile(path, tableSize))
	d, err := Open(path, tableSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestRegisterLookup_Idempotence(t *testing.T) {
	d := newTestDirectory(t, 64)

	require.NoError(t, d.Register("echo", 0))
	require.NoError(t, d.Register("echo", 0))

	w, ok := d.Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, types.WorkerID(0), w)

	d.Remove("echo")
	_, ok = d.Lookup("echo")
	assert.False(t, ok)
}

func TestRegister_OverwritesOwner(t *testing.T) {
	d := newTestDirectory(t, 64)

	require.NoError(t, d.Register("p", 0))
	require.NoError(t, d.Register("p", 1))

	w, ok := d.Lookup("p")
	require.True(t, ok)
	assert.Equal(t, types.WorkerID(1), w)
}

func TestRegister_Overflow(t *testing.T) {
	d := newTestDirectory(t, 2)

	require.NoError(t, d.Register("a", 0))
	require.NoError(t, d.Register("b", 0))

	err := d.Register("c", 0)
	assert.Error(t, err)
}

func TestRemove_Unregistered(t *testing.T) {
	d := newTestDirectory(t, 16)
	d.Remove("nothing")
	_, ok := d.Lookup("nothing")
	assert.False(t, ok)
}

func TestHas(t *testing.T) {
	d := newTestDirectory(t, 16)
	assert.False(t, d.Has("x"))
	require.NoError(t, d.Register("x", 3))
	assert.True(t, d.Has("x"))
}

func TestCrossProcessVisibility(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, CreateBackingFile(path, 64))

	writer, err := Open(path, 64)
	require.NoError(t, err)
	defer writer.Close()

	reader, err := Open(path, 64)
	require.NoError(t, err)
	defer reader.Close()

	require.NoError(t, writer.Register("shared", 7))

	w, ok := reader.Lookup("shared")
	require.True(t, ok)
	assert.Equal(t, types.WorkerID(7), w)
}

func TestRegister_PublishesOverflowEvent(t *testing.T) {
	d := newTestDirectory(t, 1)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	d.SetBroker(broker)

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	require.NoError(t, d.Register("a", 0))
	require.Error(t, d.Register("b", 0))

	var sawOverflow bool
	for !sawOverflow {
		select {
		case ev := <-sub:
			if ev.Type == events.EventDirectoryOverflow {
				sawOverflow = true
			}
		case <-time.After(time.Second):
			t.Fatal("directory.overflow event not published within 1s")
		}
	}
}

func TestPollReady(t *testing.T) {
	d := newTestDirectory(t, 16)

	require.NoError(t, d.MarkReady(0))
	require.NoError(t, d.MarkReady(1))

	require.NoError(t, d.PollReady(2, time.Millisecond, 50*time.Millisecond))

	err := d.PollReady(3, time.Millisecond, 20*time.Millisecond)
	assert.Error(t, err)
}
