// Package health tracks per-node availability from observed request outcomes.
//
// There is no active probing. Every dispatched attempt reports its outcome:
// a success restores the node, a retryable failure increments its
// consecutive failure counter, and once the counter reaches the threshold
// the node is marked unavailable and ordered last by selection policies.
//
//	tracker := health.NewTracker(health.WithThreshold(3))
//	tracker.RecordFailure(node)
//	if !tracker.IsAvailable(node) {
//	    // skip
//	}
package health
