// Package crdt defines the capability contract that every indexable nested
// CRDT implements, a registry that resolves capabilities by type identifier,
// and the totally ordered Value that the index uses as its bucket key.
package crdt
