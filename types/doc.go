// Package types defines shared data structures and the structured error
// type used across the roboforge pipeline.
package types
