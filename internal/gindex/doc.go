// Package gindex implements an operation-based grow-only index CRDT.
//
// A GIndex maps primary keys to the state of a nested CRDT (the indirection
// map) and keeps an ordered index from each key's extracted value to the set
// of keys holding it. Replicas exchange effects computed by Downstream and
// apply them with Update; once every effect has been delivered everywhere the
// replicas are Equal. Keys and buckets are never removed.
//
// A GIndex is not safe for concurrent mutation, but Update never modifies its
// receiver: it returns a new snapshot that shares unchanged structure with the
// old one, so each replica can own its snapshot outright.
package gindex
