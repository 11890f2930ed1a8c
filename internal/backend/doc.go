// Package backend defines the calculation backend contract used by
// calculation layers to run units of work, the Future handle returned for each
// submission, and a local goroutine-pool implementation.
package backend
