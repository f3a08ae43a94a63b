// Package clustererr defines sentinel errors shared across the cluster
// runtime so callers can branch with errors.Is instead of string matching.
package clustererr

import "errors"

var (
	// ErrUnknownPeer is returned when a send targets a worker id with no
	// outbound connection in the transport's peer table.
	ErrUnknownPeer = errors.New("clustererr: unknown peer")

	// ErrWrongOwner is returned when Spawn is called for a path the local
	// worker does not own according to the hash ring.
	ErrWrongOwner = errors.New("clustererr: path is not owned by this worker")

	// ErrFrameTooLarge names a frame whose length field exceeds the
	// transport's MaxFrameSize. The transport's read loop does not return
	// it: on such a frame it closes the connection.
	ErrFrameTooLarge = errors.New("clustererr: frame exceeds maximum size")

	// ErrClosed is returned by operations attempted after the owning
	// component has been closed.
	ErrClosed = errors.New("clustererr: component is closed")

	// ErrDirectoryFull is returned when a directory registration probed the
	// whole table without finding a free or matching slot.
	ErrDirectoryFull = errors.New("clustererr: directory table is full")

	// ErrUnknownPath is returned when a message is delivered to an actor
	// path with no locally spawned actor, whether or not the path has a
	// directory entry.
	ErrUnknownPath = errors.New("clustererr: no local actor at path")
)
