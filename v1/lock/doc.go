// Package lock applies the spin acquisition strategies to named flags whose
// test-and-set lives outside the process-local Mutex: a shared in-memory
// registry, a Redis key set with SETNX, or a NATS JetStream key created with
// KeyValue.Create. Locks can have an optional TTL so a crashed holder does not
// keep a key forever.
package lock
