// Package clock provides vector clocks for ordering index effects between
// replicas. A replica stamps each batch of effects it issues with its clock;
// receivers use Deliverable to hold back batches whose causal predecessors
// have not been applied yet.
package clock
