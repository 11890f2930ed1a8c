// Package layer defines calculation layers: pluggable strategies that resolve
// a batch of queued properties by submitting one unit of work per property to
// a calculation backend. It also holds the registry layers are looked up in,
// and the aggregator that merges a batch's outcomes back into the request
// ledger once every unit has finished.
package layer
