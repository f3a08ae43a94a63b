// Package node implements the per-worker façade (C4) composing the ring,
// directory, transport, serializer and actor system into spawn/send/receive
// operations.
package node

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/actorcluster/actorcluster/pkg/clustererr"
	"github.com/actorcluster/actorcluster/pkg/directory"
	"github.com/actorcluster/actorcluster/pkg/events"
	"github.com/actorcluster/actorcluster/pkg/log"
	"github.com/actorcluster/actorcluster/pkg/metrics"
	"github.com/actorcluster/actorcluster/pkg/ring"
	"github.com/actorcluster/actorcluster/pkg/transport"
	"github.com/actorcluster/actorcluster/pkg/types"
)

// Serializer round-trips values to and from bytes for the wire. Must be
// symmetric: Deserialize(Serialize(v)) reproduces v.
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
}

// ActorSystem is the external collaborator hosting actual actor behaviors;
// out of scope for this module except as a consumed interface (spec §6).
type ActorSystem interface {
	Spawn(ctx context.Context, props types.Props, path types.ActorPath) error
	Deliver(ctx context.Context, path types.ActorPath, message []byte) error
	Run(ctx context.Context) error
	Stop() error
}

// GobSerializer is the default Serializer, round-tripping Envelope values
// with encoding/gob.
type GobSerializer struct{}

func (GobSerializer) Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("node: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (GobSerializer) Deserialize(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("node: gob decode: %w", err)
	}
	return nil
}

// Node is one worker's façade: it owns a worker id, an actor system, a
// transport, a ring, a directory handle and a serializer, and implements
// spawn/send/receive by composing them.
type Node struct {
	id         types.WorkerID
	system     ActorSystem
	transport  *transport.Transport
	ring       *ring.Ring
	dir        *directory.Directory
	serializer Serializer
	broker     *events.Broker
}

// SetBroker installs an optional event broker. A nil broker (the default)
// disables publishing entirely; Node operation never depends on it.
func (n *Node) SetBroker(b *events.Broker) {
	n.broker = b
}

// Broker returns the installed event broker, or nil if none was set.
func (n *Node) Broker() *events.Broker {
	return n.broker
}

func (n *Node) publish(typ events.EventType, msg string) {
	if n.broker == nil {
		return
	}
	n.broker.Publish(&events.Event{Type: typ, Message: msg})
}

// New constructs a Node. serializer may be nil to use GobSerializer.
func New(id types.WorkerID, system ActorSystem, tr *transport.Transport, r *ring.Ring, dir *directory.Directory, serializer Serializer) *Node {
	if serializer == nil {
		serializer = GobSerializer{}
	}
	return &Node{
		id:         id,
		system:     system,
		transport:  tr,
		ring:       r,
		dir:        dir,
		serializer: serializer,
	}
}

// ID returns this node's worker id.
func (n *Node) ID() types.WorkerID {
	return n.id
}

// Stop stops the local actor system, unblocking a concurrent call to
// ActorSystem.Run. It does not close the transport or directory; the
// caller (typically bootstrap) owns their lifecycle.
func (n *Node) Stop() error {
	return n.system.Stop()
}

// Start installs the transport listener that deserializes envelopes and
// delivers them into the local actor system. Unknown destination paths are
// dropped and logged at warn (the design does not forward).
func (n *Node) Start() {
	n.transport.SetListener(func(payload []byte) {
		var env types.Envelope
		if err := n.serializer.Deserialize(payload, &env); err != nil {
			log.WithComponent("node").Warn().Err(err).Msg("failed to deserialize envelope, dropping")
			return
		}

		ctx := context.Background()
		if err := n.system.Deliver(ctx, env.DestinationPath, env.Payload); err != nil {
			metrics.DeliveryDropsUnknownPath.Inc()
			log.WithComponent("node").Warn().
				Str("path", string(env.DestinationPath)).
				Err(err).
				Msg("no local actor for destination path, dropping")
		}
	})
}

// Spawn instantiates props locally under path and registers (path, n.id)
// in the directory. Refuses (returns clustererr.ErrWrongOwner) to spawn a
// path whose ring owner is a different worker — this is what prevents the
// last-write-wins race in the directory from ever mattering in practice.
func (n *Node) Spawn(ctx context.Context, props types.Props, path types.ActorPath) error {
	if owner := n.ring.NodeFor(path); owner != n.id {
		return fmt.Errorf("node: path %q belongs to worker %d, not %d: %w", path, owner, n.id, clustererr.ErrWrongOwner)
	}

	if err := n.system.Spawn(ctx, props, path); err != nil {
		return fmt.Errorf("node: spawn %q: %w", path, err)
	}

	if err := n.dir.Register(path, n.id); err != nil {
		return fmt.Errorf("node: register %q: %w", path, err)
	}

	n.publish(events.EventActorSpawned, fmt.Sprintf("%q spawned on worker %d", path, n.id))
	return nil
}

// Send resolves path's owner via the directory, computing and registering
// it via the ring on first reference (claim-on-first-reference). Local
// sends deliver directly into the actor system; remote sends serialize an
// envelope and hand it to the transport.
func (n *Node) Send(ctx context.Context, path types.ActorPath, message []byte) error {
	owner, ok := n.dir.Lookup(path)
	if !ok {
		timer := metrics.NewTimer()
		owner = n.ring.NodeFor(path)
		timer.ObserveDuration(metrics.RingLookupDuration)

		if err := n.dir.Register(path, owner); err != nil {
			log.WithComponent("node").Warn().Str("path", string(path)).Err(err).Msg("directory registration failed on claim")
		}
	}

	if owner == n.id {
		metrics.SendsLocal.Inc()
		if err := n.system.Deliver(ctx, path, message); err != nil {
			return fmt.Errorf("node: local deliver %q: %w", path, err)
		}
		return nil
	}

	metrics.SendsRemote.Inc()
	env := types.Envelope{DestinationPath: path, Payload: message}
	payload, err := n.serializer.Serialize(env)
	if err != nil {
		return fmt.Errorf("node: serialize envelope for %q: %w", path, err)
	}

	if err := n.transport.Send(owner, payload); err != nil {
		return fmt.Errorf("node: send %q to worker %d: %w", path, owner, err)
	}
	return nil
}
