// Package ring implements the consistent hash ring that decides which
// worker owns a given actor path.
package ring

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/actorcluster/actorcluster/pkg/types"
)

// virtualNode is one point a worker occupies on the hash circle.
type virtualNode struct {
	hash   uint64
	worker types.WorkerID
}

// Ring is a deterministic, immutable-after-construction consistent hash
// ring. Construction places VirtualNodes points per worker on the circle;
// NodeFor walks clockwise from hash(path) to the nearest virtual node.
//
// A Ring is safe for concurrent read-only use; it never mutates after New.
type Ring struct {
	nodes []virtualNode
}

// New builds a ring for workerCount workers with the given number of
// virtual nodes per worker. workerCount must be >= 1 and virtualNodes >= 1.
func New(workerCount, virtualNodes int) (*Ring, error) {
	if workerCount < 1 {
		return nil, fmt.Errorf("ring: workerCount must be >= 1, got %d", workerCount)
	}
	if virtualNodes < 1 {
		return nil, fmt.Errorf("ring: virtualNodes must be >= 1, got %d", virtualNodes)
	}

	nodes := make([]virtualNode, 0, workerCount*virtualNodes)
	for w := 0; w < workerCount; w++ {
		for r := 0; r < virtualNodes; r++ {
			key := strconv.Itoa(w) + ":" + strconv.Itoa(r)
			nodes = append(nodes, virtualNode{
				hash:   hashString(key),
				worker: types.WorkerID(w),
			})
		}
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].hash != nodes[j].hash {
			return nodes[i].hash < nodes[j].hash
		}
		return nodes[i].worker < nodes[j].worker
	})

	return &Ring{nodes: nodes}, nil
}

// NodeFor returns the worker id owning path. Total function: every
// non-empty ring returns a valid worker id for every input.
func (r *Ring) NodeFor(path types.ActorPath) types.WorkerID {
	h := hashString(string(path))

	i := sort.Search(len(r.nodes), func(i int) bool {
		return r.nodes[i].hash >= h
	})
	if i == len(r.nodes) {
		i = 0
	}
	return r.nodes[i].worker
}

func hashString(s string) uint64 {
	return xxhash.Sum64String(s)
}
