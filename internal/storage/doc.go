// Package storage persists encoded index snapshots. Stores hold the binary
// encoding rather than live snapshots, so every Get decodes a private copy.
package storage
