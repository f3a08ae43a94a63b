// Package integration hosts the multi-process end-to-end scenarios from
// spec §8 that need real exec.Command children and real sockets. The test
// binary itself is the re-exec target: TestMain intercepts worker
// invocations before the testing harness runs, the same way a production
// cmd/actorcluster binary would intercept them in main().
package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/actorcluster/actorcluster/pkg/bootstrap"
	"github.com/actorcluster/actorcluster/pkg/clustererr"
	"github.com/actorcluster/actorcluster/pkg/node"
	"github.com/actorcluster/actorcluster/pkg/types"
)

// envScenario selects which worker behavior a re-exec'd child runs, since
// the only channel between the parent test and its forked children is
// environment variables.
const envScenario = "ACTORCLUSTER_TEST_SCENARIO"

func TestMain(m *testing.M) {
	if bootstrap.IsWorkerProcess() {
		runScenarioWorker()
		return
	}
	os.Exit(m.Run())
}

// runScenarioWorker runs the worker-side half of whichever scenario test
// started this process, then exits. It never returns to the testing
// harness because this process was forked purely to be a cluster worker.
func runScenarioWorker() {
	scenario := os.Getenv(envScenario)

	var onStart bootstrap.WorkerStartFunc
	switch scenario {
	case scenarioEcho:
		onStart = echoWorkerStart
	case scenarioClaimOnFirstReference:
		onStart = claimWorkerStart
	case scenarioNoop:
		onStart = func(*node.Node) {}
	default:
		onStart = func(*node.Node) {}
	}

	b := bootstrap.Create(types.ClusterConfig{}).OnWorkerStart(onStart)
	if err := b.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker exited with error:", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// echoWorkerStart runs identically on every worker: whichever one owns
// "echo" on the ring spawns it, the rest are no-ops for the spawn side.
// Every worker then sends "hi" to "echo", exercising both the local and
// the remote-forward path depending on which worker actually owns it.
func echoWorkerStart(n *node.Node) {
	props := types.Props{
		Behavior: func(ctx types.Context, msg []byte) error {
			return writeMarker(n.ID(), string(msg))
		},
	}
	if err := n.Spawn(context.Background(), props, "echo"); err != nil && !errors.Is(err, clustererr.ErrWrongOwner) {
		fmt.Fprintln(os.Stderr, "spawn echo failed:", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := n.Send(context.Background(), "echo", []byte("hi")); err != nil {
			fmt.Fprintln(os.Stderr, "send echo failed:", err)
		}
	}()
}

func claimWorkerStart(n *node.Node) {
	if n.ID() != 0 {
		return
	}
	if err := n.Send(context.Background(), "new", []byte("x")); err != nil {
		fmt.Fprintln(os.Stderr, "send failed:", err)
	}
}

