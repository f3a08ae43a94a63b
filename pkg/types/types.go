package types

import "time"

// WorkerID identifies one of the N peer worker processes in the cluster.
// It is assigned at bootstrap and stable for the life of the cluster.
type WorkerID int32

// ActorPath is an opaque, non-empty identifier for an actor. It doubles as
// the directory key and the ring hash input, and is never mutated once an
// actor has been spawned under it.
type ActorPath string

// DirectoryEntry is a single path -> owner mapping as observed by a reader.
// Once written for a given path it is pinned for the lifetime of the
// cluster; it is never returned for a path that has not been registered or
// has since been removed.
type DirectoryEntry struct {
	Path     ActorPath
	Owner    WorkerID
	Accessed time.Time
}

// Envelope is what Node puts on the wire: a destination path and an opaque,
// already-serialized user payload.
type Envelope struct {
	DestinationPath ActorPath
	Payload         []byte
}

// ClusterConfig is the bootstrap-time configuration record. It is the only
// input to Bootstrap; every other option implementers might want belongs in
// the embedding application, not here.
type ClusterConfig struct {
	// WorkerCount is N, the number of peer worker processes. Must be >= 1.
	WorkerCount int `yaml:"workerCount"`

	// TableSize is the fixed capacity of the shared directory's hash table.
	TableSize int `yaml:"tableSize"`

	// VirtualNodes is V, the number of ring replicas per worker. Defaults
	// to 160 when zero.
	VirtualNodes int `yaml:"virtualNodes"`

	// SocketDir is the directory holding worker-{i}.sock and the shared
	// directory backing file. Created (mode 0755) if missing.
	SocketDir string `yaml:"socketDir"`

	// LogLevel and LogJSON configure the ambient logger (see pkg/log).
	LogLevel string `yaml:"logLevel"`
	LogJSON  bool   `yaml:"logJSON"`

	// MetricsAddr, if non-empty, makes the actorcluster CLI serve /metrics,
	// /health, /ready and /live at this address (e.g. ":9090") from the
	// bootstrap parent process. Bootstrap itself does not read it, and the
	// listener reports the parent process's own registry and health state,
	// not that of the worker processes. Empty disables metrics serving
	// without disabling metric collection.
	MetricsAddr string `yaml:"metricsAddr"`

	// FailFastOnDirectoryOverflow is accepted in the configuration but is
	// not read by Bootstrap and not passed to worker processes: directory
	// overflow always logs a warning and makes Register return
	// clustererr.ErrDirectoryFull, whatever this field is set to.
	FailFastOnDirectoryOverflow bool `yaml:"failFastOnDirectoryOverflow"`
}

// DefaultVirtualNodes is used when ClusterConfig.VirtualNodes is zero.
const DefaultVirtualNodes = 160

// Normalize fills in zero-value defaults and returns the config ready to use.
func (c ClusterConfig) Normalize() ClusterConfig {
	if c.VirtualNodes <= 0 {
		c.VirtualNodes = DefaultVirtualNodes
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// Context is passed to a Behavior on every delivery. It carries the path
// the message was delivered to and a Worker field. The wire envelope holds
// no source worker id, so the reference actorsystem.System sets Worker to
// -1 for every delivery, local or remote.
type Context struct {
	Path   ActorPath
	Worker WorkerID
}

// Behavior processes a single message delivered to an actor's mailbox.
type Behavior func(ctx Context, msg []byte) error

// Props describes how to construct a locally-spawned actor. It is the
// minimal surface the core needs from the external actor system
// collaborator (spec §6): a behavior function invoked once per delivered
// message, and a mailbox size.
type Props struct {
	Behavior    Behavior
	MailboxSize int
}
