// Package repair compares two index replicas and reports where they
// diverge. The report is diagnostic: replicas that received the same
// effects report nothing, and anything listed points at an effect one of
// them is missing.
package repair
