package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/actorcluster/actorcluster/pkg/types"
)

const (
	scenarioEcho                  = "echo"
	scenarioClaimOnFirstReference = "claim"
	scenarioNoop                  = "noop"

	socketDirEnv = "ACTORCLUSTER_SOCKET_DIR"
)

// writeMarker records that workerID observed payload, so the parent test
// process (which cannot see into a forked child's memory) can assert on
// it by polling the filesystem. The marker name is fixed per scenario
// rather than keyed by worker id, since which worker actually owns a
// given path on the ring is not something the test controls.
func writeMarker(_ types.WorkerID, payload string) error {
	return writeNamedMarker("echo", payload)
}

func writeNamedMarker(name, payload string) error {
	dir := os.Getenv(socketDirEnv)
	path := filepath.Join(dir, "marker-"+name)
	return os.WriteFile(path, []byte(payload), 0644)
}

// waitForMarker polls for the named marker file and returns its contents,
// failing after timeout.
func waitForMarker(socketDir string, name string, timeout time.Duration) (string, error) {
	path := filepath.Join(socketDir, "marker-"+name)
	deadline := time.Now().Add(timeout)
	for {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("marker %s not written within %s: %w", path, timeout, err)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
