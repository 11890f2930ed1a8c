// Package engine runs estimation requests through their calculation layers.
// Each request is persisted as pending, then a goroutine hands its ledger to
// every requested layer in turn, waiting for one layer's completion callback
// before scheduling the next, and records the final ledger in the store.
package engine
