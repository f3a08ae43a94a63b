/*
Package types defines the core data structures shared across the cluster
runtime: actor paths, worker ids, directory entries, the wire envelope, the
bootstrap configuration record, and the minimal collaborator surface
(Props/Behavior/Context) that an embedding actor system must satisfy.

These types carry no behavior of their own — they are the nouns the other
packages (ring, directory, transport, node, bootstrap) operate on.

# Thread Safety

Values of these types are read-safe for concurrent use; mutation (e.g.
building up a ClusterConfig) is the caller's responsibility, same as
everywhere else in this module.
*/
package types
