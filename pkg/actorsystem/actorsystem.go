// Package actorsystem is a minimal reference implementation of the
// ActorSystem collaborator interface (node.ActorSystem). It is not the
// subject of this module — scheduling of user actor behaviors is an
// external collaborator per spec — but the core needs something concrete
// to exercise for the end-to-end scenarios and demos.
package actorsystem

import (
	"context"
	"fmt"
	"sync"

	"github.com/actorcluster/actorcluster/pkg/clustererr"
	"github.com/actorcluster/actorcluster/pkg/log"
	"github.com/actorcluster/actorcluster/pkg/types"
)

// actor is one spawned actor: a mailbox channel and the goroutine draining
// it into the installed behavior.
type actor struct {
	mailbox chan []byte
	cancel  context.CancelFunc
}

// System is a goroutine-per-actor reference ActorSystem: each spawned
// actor gets a buffered mailbox channel and a dedicated goroutine invoking
// its Behavior for every delivered message, in delivery order.
type System struct {
	mu     sync.RWMutex
	actors map[types.ActorPath]*actor
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New constructs an empty actor system.
func New() *System {
	return &System{
		actors: make(map[types.ActorPath]*actor),
		stopCh: make(chan struct{}),
	}
}

// Spawn starts a new actor at path with the given props. Returns an error
// if path is already occupied.
func (s *System) Spawn(ctx context.Context, props types.Props, path types.ActorPath) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.actors[path]; exists {
		return fmt.Errorf("actorsystem: actor already spawned at %q", path)
	}

	mailboxSize := props.MailboxSize
	if mailboxSize <= 0 {
		mailboxSize = 16
	}

	actorCtx, cancel := context.WithCancel(ctx)
	a := &actor{
		mailbox: make(chan []byte, mailboxSize),
		cancel:  cancel,
	}
	s.actors[path] = a

	s.wg.Add(1)
	go s.run(actorCtx, path, props.Behavior, a)

	return nil
}

func (s *System) run(ctx context.Context, path types.ActorPath, behavior types.Behavior, a *actor) {
	defer s.wg.Done()

	actorLog := log.WithComponent("actorsystem").With().Str("path", string(path)).Logger()

	for {
		select {
		case msg := <-a.mailbox:
			actorCtx := types.Context{Path: path, Worker: -1}
			if err := behavior(actorCtx, msg); err != nil {
				actorLog.Error().Err(err).Msg("actor behavior returned an error")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Deliver enqueues message into path's mailbox. Returns
// clustererr.ErrUnknownPath if no actor is spawned at path locally.
func (s *System) Deliver(ctx context.Context, path types.ActorPath, message []byte) error {
	s.mu.RLock()
	a, ok := s.actors[path]
	s.mu.RUnlock()

	if !ok {
		return clustererr.ErrUnknownPath
	}

	select {
	case a.mailbox <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run blocks until Stop is called.
func (s *System) Run(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels every actor's goroutine and waits for them to exit.
func (s *System) Stop() error {
	s.mu.Lock()
	for _, a := range s.actors {
		a.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	return nil
}
