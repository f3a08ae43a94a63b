package actorsystem

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actorcluster/actorcluster/pkg/clustererr"
	"github.com/actorcluster/actorcluster/pkg/types"
)

func TestSpawnDeliver(t *testing.T) {
	s := New()
	defer s.Stop()

	received := make(chan string, 1)
	props := types.Props{
		Behavior: func(ctx types.Context, msg []byte) error {
			received <- string(msg)
			return nil
		},
	}

	require.NoError(t, s.Spawn(context.Background(), props, "echo"))
	require.NoError(t, s.Deliver(context.Background(), "echo", []byte("hi")))

	select {
	case msg := <-received:
		assert.Equal(t, "hi", msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestDeliver_UnknownPath(t *testing.T) {
	s := New()
	defer s.Stop()

	err := s.Deliver(context.Background(), "ghost", []byte("hi"))
	assert.True(t, errors.Is(err, clustererr.ErrUnknownPath))
}

func TestSpawn_DuplicatePath(t *testing.T) {
	s := New()
	defer s.Stop()

	props := types.Props{Behavior: func(types.Context, []byte) error { return nil }}
	require.NoError(t, s.Spawn(context.Background(), props, "a"))
	assert.Error(t, s.Spawn(context.Background(), props, "a"))
}

func TestDeliver_InOrder(t *testing.T) {
	s := New()
	defer s.Stop()

	var mu sync.Mutex
	var got []int

	props := types.Props{
		Behavior: func(ctx types.Context, msg []byte) error {
			mu.Lock()
			got = append(got, int(msg[0]))
			mu.Unlock()
			return nil
		},
		MailboxSize: 100,
	}
	require.NoError(t, s.Spawn(context.Background(), props, "ordered"))

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Deliver(context.Background(), "ordered", []byte{byte(i)}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 20
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}
