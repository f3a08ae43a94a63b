// Package directory implements the shared actor directory: a
// memory-mapped, fixed-capacity hash table mapping actor paths to owner
// worker ids, visible across every worker process in the cluster.
//
// The backing file is created once by the bootstrap parent and mapped
// MAP_SHARED by every worker after fork. Writes through one mapping become
// visible through every other mapping because all of them back the same
// physical pages; there is no separate cross-process synchronization
// primitive in the data path. A sync.Mutex serializes only this process's
// own probes — it cannot, and does not try to, serialize against other
// processes. Cross-process races over the same path are resolved
// last-write-wins, which is safe only because the cluster node layer (C4)
// guarantees a path is never registered with two different owners.
package directory

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"

	"github.com/actorcluster/actorcluster/pkg/clustererr"
	"github.com/actorcluster/actorcluster/pkg/events"
	"github.com/actorcluster/actorcluster/pkg/log"
	"github.com/actorcluster/actorcluster/pkg/metrics"
	"github.com/actorcluster/actorcluster/pkg/types"
)

// Row layout, fixed width:
//
//	[1 byte occupancy][4 bytes workerID][8 bytes pathHash][2 bytes path length][pathWidth bytes path, zero-padded]
const (
	occupancyEmpty    byte = 0
	occupancyOccupied byte = 1
	occupancyTomb     byte = 2

	occupancyOffset = 0
	workerOffset    = 1
	hashOffset      = 5
	lengthOffset    = 13
	pathOffset      = 15

	// pathWidth bounds the stored path length; longer paths are rejected
	// rather than silently truncated, so directory keys never collide on
	// a shared prefix.
	pathWidth = 256
	rowWidth  = pathOffset + pathWidth

	headerSize = 16
)

// FileName is the backing file created under a cluster's socket directory.
const FileName = "directory.tab"

// CreateBackingFile creates (or truncates) the shared directory's backing
// file at path, sized to hold tableSize rows. Called exactly once by the
// bootstrap parent before any worker is forked.
func CreateBackingFile(path string, tableSize int) error {
	if tableSize < 1 {
		return fmt.Errorf("directory: tableSize must be >= 1, got %d", tableSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("directory: create backing file: %w", err)
	}
	defer f.Close()

	size := int64(headerSize + tableSize*rowWidth)
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("directory: size backing file: %w", err)
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint64(header[0:8], uint64(tableSize))
	if _, err := f.WriteAt(header, 0); err != nil {
		return fmt.Errorf("directory: write header: %w", err)
	}

	return nil
}

// Directory is one process's view of the shared table, opened and mapped
// after CreateBackingFile has already sized the file.
type Directory struct {
	mu        sync.Mutex
	file      *os.File
	data      []byte
	tableSize int
	closed    bool
	broker    *events.Broker
}

// SetBroker installs an optional event broker. A nil broker (the default)
// disables publishing entirely; directory operation never depends on it.
func (d *Directory) SetBroker(b *events.Broker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.broker = b
}

func (d *Directory) publish(typ events.EventType, msg string) {
	if d.broker == nil {
		return
	}
	d.broker.Publish(&events.Event{Type: typ, Message: msg})
}

// Open maps the backing file at path into this process. tableSize must
// match the value CreateBackingFile was called with.
func Open(path string, tableSize int) (*Directory, error) {
	if tableSize < 1 {
		return nil, fmt.Errorf("directory: tableSize must be >= 1, got %d", tableSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("directory: open backing file: %w", err)
	}

	size := headerSize + tableSize*rowWidth
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("directory: mmap backing file: %w", err)
	}

	metrics.DirectoryEntries.Set(0)

	return &Directory{
		file:      f,
		data:      data,
		tableSize: tableSize,
	}, nil
}

// Close unmaps the region and closes the file handle. It does not remove
// the backing file; the bootstrap parent owns that.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if err := unix.Munmap(d.data); err != nil {
		d.file.Close()
		return fmt.Errorf("directory: munmap: %w", err)
	}
	return d.file.Close()
}

func (d *Directory) row(slot int) []byte {
	off := headerSize + slot*rowWidth
	return d.data[off : off+rowWidth]
}

func (d *Directory) probeStart(path types.ActorPath) (int, uint64) {
	h := pathHash(path)
	return int(h % uint64(d.tableSize)), h
}

// Register idempotently writes path -> worker. If path is already present
// with a different owner, that owner is overwritten (last-write-wins; see
// package doc). Returns clustererr.ErrDirectoryFull if linear probing
// exhausts the table without finding a free or matching slot.
func (d *Directory) Register(path types.ActorPath, worker types.WorkerID) error {
	if len(path) > pathWidth {
		return fmt.Errorf("directory: path %q exceeds max length %d", path, pathWidth)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return clustererr.ErrClosed
	}

	start, h := d.probeStart(path)
	pathBytes := []byte(path)
	free := -1

probe:
	for i := 0; i < d.tableSize; i++ {
		slot := (start + i) % d.tableSize
		row := d.row(slot)

		switch row[occupancyOffset] {
		case occupancyEmpty, occupancyTomb:
			if free < 0 {
				free = slot
			}
			if row[occupancyOffset] == occupancyEmpty {
				break probe
			}
		case occupancyOccupied:
			if rowHash(row) == h && rowPathEquals(row, pathBytes) {
				binary.BigEndian.PutUint32(row[workerOffset:workerOffset+4], uint32(worker))
				d.publish(events.EventDirectoryRegistered, fmt.Sprintf("%s -> worker %d", path, worker))
				return nil
			}
		}
	}

	if free >= 0 {
		writeRow(d.row(free), worker, h, pathBytes)
		metrics.DirectoryEntries.Inc()
		d.publish(events.EventDirectoryRegistered, fmt.Sprintf("%s -> worker %d", path, worker))
		return nil
	}

	metrics.DirectoryOverflows.Inc()
	log.WithComponent("directory").Warn().Str("path", string(path)).Msg("directory table full, dropping registration")
	d.publish(events.EventDirectoryOverflow, fmt.Sprintf("directory full, dropped registration for %s", path))
	return clustererr.ErrDirectoryFull
}

// Lookup returns the worker owning path, and whether an entry exists.
func (d *Directory) Lookup(path types.ActorPath) (types.WorkerID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.find(path)
	if !ok {
		metrics.DirectoryLookups.WithLabelValues("miss").Inc()
		return 0, false
	}
	metrics.DirectoryLookups.WithLabelValues("hit").Inc()
	row := d.row(slot)
	return types.WorkerID(binary.BigEndian.Uint32(row[workerOffset : workerOffset+4])), true
}

// Has reports whether path has a live directory entry.
func (d *Directory) Has(path types.ActorPath) bool {
	_, ok := d.Lookup(path)
	return ok
}

// Remove unconditionally tombstones path's entry, if present.
func (d *Directory) Remove(path types.ActorPath) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.find(path)
	if !ok {
		return
	}
	row := d.row(slot)
	row[occupancyOffset] = occupancyTomb
	metrics.DirectoryEntries.Dec()
}

// find locates path's slot, probing through tombstones. Caller must hold d.mu.
func (d *Directory) find(path types.ActorPath) (int, bool) {
	start, h := d.probeStart(path)
	pathBytes := []byte(path)

	for i := 0; i < d.tableSize; i++ {
		slot := (start + i) % d.tableSize
		row := d.row(slot)

		switch row[occupancyOffset] {
		case occupancyEmpty:
			return 0, false
		case occupancyOccupied:
			if rowHash(row) == h && rowPathEquals(row, pathBytes) {
				return slot, true
			}
		case occupancyTomb:
			// keep probing past tombstones
		}
	}
	return 0, false
}

func writeRow(row []byte, worker types.WorkerID, h uint64, path []byte) {
	row[occupancyOffset] = occupancyOccupied
	binary.BigEndian.PutUint32(row[workerOffset:workerOffset+4], uint32(worker))
	binary.BigEndian.PutUint64(row[hashOffset:hashOffset+8], h)
	binary.BigEndian.PutUint16(row[lengthOffset:lengthOffset+2], uint16(len(path)))
	clear(row[pathOffset:])
	copy(row[pathOffset:], path)
}

func rowHash(row []byte) uint64 {
	return binary.BigEndian.Uint64(row[hashOffset : hashOffset+8])
}

func rowPathEquals(row []byte, path []byte) bool {
	n := binary.BigEndian.Uint16(row[lengthOffset : lengthOffset+2])
	if int(n) != len(path) {
		return false
	}
	return string(row[pathOffset:pathOffset+int(n)]) == string(path)
}

// PollReady blocks until every worker id in [0, n) has registered a
// "__ready/{id}" entry, or timeout elapses. This is the startup barrier
// every worker waits on before connecting to its peers, replacing a fixed
// sleep with an actual readiness check against the shared directory.
func (d *Directory) PollReady(n int, interval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ready := 0
		for i := 0; i < n; i++ {
			if d.Has(readyPath(i)) {
				ready++
			}
		}
		if ready == n {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("directory: readiness barrier timed out after %s (%d/%d ready)", timeout, ready, n)
		}
		time.Sleep(interval)
	}
}

// MarkReady registers this worker's readiness entry for the startup barrier.
func (d *Directory) MarkReady(id int) error {
	return d.Register(readyPath(id), types.WorkerID(id))
}

func readyPath(id int) types.ActorPath {
	return types.ActorPath(fmt.Sprintf("__ready/%d", id))
}

func pathHash(path types.ActorPath) uint64 {
	return xxhash.Sum64String(string(path))
}
