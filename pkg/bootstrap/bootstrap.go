// Package bootstrap implements the cluster bootstrap and worker lifecycle
// (C5): it creates the shared directory region, the socket directory, and
// spawns the N worker processes via a self-re-exec of the current binary,
// then sequences each worker's bind -> readiness barrier -> connect ->
// start -> user callback -> run.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/actorcluster/actorcluster/pkg/actorsystem"
	"github.com/actorcluster/actorcluster/pkg/directory"
	"github.com/actorcluster/actorcluster/pkg/events"
	"github.com/actorcluster/actorcluster/pkg/log"
	"github.com/actorcluster/actorcluster/pkg/node"
	"github.com/actorcluster/actorcluster/pkg/ring"
	"github.com/actorcluster/actorcluster/pkg/transport"
	"github.com/actorcluster/actorcluster/pkg/types"
)

// Environment variables a re-exec'd worker process reads instead of flags,
// so embedding applications never have to wire a CLI through to Bootstrap
// (cmd/actorcluster is a separate, optional convenience binary that does).
const (
	envWorkerID    = "ACTORCLUSTER_WORKER_ID"
	envWorkerCount = "ACTORCLUSTER_WORKER_COUNT"
	envTableSize   = "ACTORCLUSTER_TABLE_SIZE"
	envSocketDir   = "ACTORCLUSTER_SOCKET_DIR"
	envVirtualNode = "ACTORCLUSTER_VIRTUAL_NODES"
	envLogLevel    = "ACTORCLUSTER_LOG_LEVEL"
	envLogJSON     = "ACTORCLUSTER_LOG_JSON"

	readyPollInterval = 10 * time.Millisecond
	readyPollTimeout  = 5 * time.Second
)

// WorkerStartFunc is invoked exactly once per worker with the fully wired
// Node, after bind, barrier and connect have completed. It must not block
// longer than actor spawning requires.
type WorkerStartFunc func(n *node.Node)

// Bootstrap is the builder-style entry point: Create, then OnWorkerStart /
// WithSerializer, then Run.
type Bootstrap struct {
	config     types.ClusterConfig
	onStart    WorkerStartFunc
	serializer node.Serializer
}

// Create begins a new Bootstrap for the given configuration.
func Create(config types.ClusterConfig) *Bootstrap {
	return &Bootstrap{config: config.Normalize()}
}

// OnWorkerStart registers the callback invoked once per worker after it is
// fully wired. Returns the receiver for chaining.
func (b *Bootstrap) OnWorkerStart(fn WorkerStartFunc) *Bootstrap {
	b.onStart = fn
	return b
}

// WithSerializer overrides the default gob serializer. Returns the
// receiver for chaining.
func (b *Bootstrap) WithSerializer(s node.Serializer) *Bootstrap {
	b.serializer = s
	return b
}

// WorkerEnv returns the environment variable assignments a re-exec'd
// worker process id needs, for callers that supervise worker processes
// themselves instead of going through Bootstrap.Run (e.g. test harnesses).
func WorkerEnv(cfg types.ClusterConfig, id int) []string {
	cfg = cfg.Normalize()
	return []string{
		envWorkerID + "=" + strconv.Itoa(id),
		envWorkerCount + "=" + strconv.Itoa(cfg.WorkerCount),
		envTableSize + "=" + strconv.Itoa(cfg.TableSize),
		envSocketDir + "=" + cfg.SocketDir,
		envVirtualNode + "=" + strconv.Itoa(cfg.VirtualNodes),
		envLogLevel + "=" + cfg.LogLevel,
		envLogJSON + "=" + strconv.FormatBool(cfg.LogJSON),
	}
}

// IsWorkerProcess reports whether the current process was re-exec'd by Run
// to act as a worker, as opposed to the original parent invocation.
func IsWorkerProcess() bool {
	return os.Getenv(envWorkerID) != ""
}

// Run is the single entry point for both the parent and re-exec'd worker
// processes: call it unconditionally from main(). In the parent it spawns
// workerCount children and blocks until they all exit; in a re-exec'd
// child it runs that one worker's lifecycle and returns when it stops.
func (b *Bootstrap) Run() error {
	if IsWorkerProcess() {
		return b.runWorker()
	}
	return b.runParent()
}

func (b *Bootstrap) runParent() error {
	cfg := b.config
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("bootstrap: WorkerCount must be >= 1, got %d", cfg.WorkerCount)
	}

	if err := os.MkdirAll(cfg.SocketDir, 0755); err != nil {
		return fmt.Errorf("bootstrap: create socket dir: %w", err)
	}

	dbPath := filepath.Join(cfg.SocketDir, directory.FileName)
	if err := directory.CreateBackingFile(dbPath, cfg.TableSize); err != nil {
		return fmt.Errorf("bootstrap: create shared directory region: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("bootstrap: resolve own executable: %w", err)
	}

	logger := log.WithComponent("bootstrap")

	cmds := make([]*exec.Cmd, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		cmd := exec.Command(exe, os.Args[1:]...)
		cmd.Env = append(os.Environ(), WorkerEnv(cfg, i)...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("bootstrap: start worker %d: %w", i, err)
		}
		cmds[i] = cmd

		logger.Info().Int("worker_id", i).Int("pid", cmd.Process.Pid).Msg("worker started")
	}

	var firstErr error
	for i, cmd := range cmds {
		if err := cmd.Wait(); err != nil {
			logger.Error().Int("worker_id", i).Err(err).Msg("worker exited with error")
			if firstErr == nil {
				firstErr = fmt.Errorf("bootstrap: worker %d: %w", i, err)
			}
		}
		_ = os.Remove(filepath.Join(cfg.SocketDir, "worker-"+strconv.Itoa(i)+".sock"))
	}
	return firstErr
}

func (b *Bootstrap) runWorker() error {
	id, err := strconv.Atoi(os.Getenv(envWorkerID))
	if err != nil {
		return fmt.Errorf("bootstrap: invalid %s: %w", envWorkerID, err)
	}
	workerCount, err := strconv.Atoi(os.Getenv(envWorkerCount))
	if err != nil {
		return fmt.Errorf("bootstrap: invalid %s: %w", envWorkerCount, err)
	}
	tableSize, err := strconv.Atoi(os.Getenv(envTableSize))
	if err != nil {
		return fmt.Errorf("bootstrap: invalid %s: %w", envTableSize, err)
	}
	virtualNodes, err := strconv.Atoi(os.Getenv(envVirtualNode))
	if err != nil {
		return fmt.Errorf("bootstrap: invalid %s: %w", envVirtualNode, err)
	}
	socketDir := os.Getenv(envSocketDir)

	log.Init(log.Config{
		Level:      log.Level(os.Getenv(envLogLevel)),
		JSONOutput: os.Getenv(envLogJSON) == "true",
	})

	workerID := types.WorkerID(id)
	workerLog := log.WithWorker(id)

	r, err := ring.New(workerCount, virtualNodes)
	if err != nil {
		return fmt.Errorf("bootstrap: construct ring: %w", err)
	}

	dbPath := filepath.Join(socketDir, directory.FileName)
	dir, err := directory.Open(dbPath, tableSize)
	if err != nil {
		return fmt.Errorf("bootstrap: open shared directory: %w", err)
	}
	defer dir.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	dir.SetBroker(broker)

	tr := transport.New(workerID, socketDir)
	tr.SetBroker(broker)
	if err := tr.Bind(); err != nil {
		return fmt.Errorf("bootstrap: bind transport: %w", err)
	}
	defer tr.Close()

	if err := dir.MarkReady(id); err != nil {
		workerLog.Warn().Err(err).Msg("failed to mark worker ready")
	}
	if err := dir.PollReady(workerCount, readyPollInterval, readyPollTimeout); err != nil {
		return fmt.Errorf("bootstrap: startup barrier: %w", err)
	}

	if err := tr.ConnectToPeers(workerCount); err != nil {
		return fmt.Errorf("bootstrap: connect to peers: %w", err)
	}

	system := actorsystem.New()
	n := node.New(workerID, system, tr, r, dir, b.serializer)
	n.SetBroker(broker)
	n.Start()

	if b.onStart != nil {
		b.onStart(n)
	}

	workerLog.Info().Msg("worker running")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		workerLog.Info().Msg("received shutdown signal")
		n.Stop()
	}()

	return system.Run(ctx)
}
