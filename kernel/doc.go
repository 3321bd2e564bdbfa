// Package kernel holds the small concurrency primitives the engine is built on:
// a monotonic use clock, a bounded command mailbox for producer goroutines and
// a sequence-stamped publication slot.
//
// Nothing here allocates on the hot path and nothing blocks the render loop.
package kernel
