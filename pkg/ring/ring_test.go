package ring

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actorcluster/actorcluster/pkg/types"
)

func TestNew_RejectsInvalidParams(t *testing.T) {
	_, err := New(0, 160)
	assert.Error(t, err)

	_, err = New(4, 0)
	assert.Error(t, err)
}

func TestNodeFor_Determinism(t *testing.T) {
	r1, err := New(8, 160)
	require.NoError(t, err)
	r2, err := New(8, 160)
	require.NoError(t, err)

	paths := []types.ActorPath{"orders/42", "echo", "new", "a", "zzzzz"}
	for _, p := range paths {
		assert.Equal(t, r1.NodeFor(p), r2.NodeFor(p), "path %q must map identically across independent constructions", p)
	}
}

func TestNodeFor_Coverage(t *testing.T) {
	r, err := New(16, 160)
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		p := types.ActorPath(fmt.Sprintf("path-%d", rnd.Int63()))
		w := r.NodeFor(p)
		assert.True(t, w >= 0 && int(w) < 16)
	}
}

func TestNodeFor_Balance(t *testing.T) {
	for _, n := range []int{4, 16, 64} {
		r, err := New(n, 160)
		require.NoError(t, err)

		counts := make(map[types.WorkerID]int, n)
		rnd := rand.New(rand.NewSource(int64(n)))
		const samples = 100000
		for i := 0; i < samples; i++ {
			p := types.ActorPath(fmt.Sprintf("path-%d-%d", n, rnd.Int63()))
			counts[r.NodeFor(p)]++
		}

		mean := float64(samples) / float64(n)
		max := 0
		for _, c := range counts {
			if c > max {
				max = c
			}
		}
		ratio := float64(max) / mean
		assert.LessOrEqualf(t, ratio, 1.5, "N=%d: max/mean ratio %.3f exceeds 1.5", n, ratio)
	}
}

func TestNodeFor_KnownPlacement(t *testing.T) {
	r1, err := New(4, 160)
	require.NoError(t, err)
	r2, err := New(4, 160)
	require.NoError(t, err)

	const path = types.ActorPath("orders/42")
	owner := r1.NodeFor(path)
	assert.Equal(t, owner, r2.NodeFor(path))
	assert.True(t, owner >= 0 && int(owner) < 4)
}
