// Package workflow defines the review pipeline for work items.
//
// The Engine is a pure function over an item snapshot: given the current
// state, a requested status and the acting identity it either rejects the
// request with an InvalidTransitionError or returns an Outcome describing
// the new status together with the side effects the caller must apply.
// Nothing here touches storage or the network; the dispatch package executes
// the effects atomically and turns them into delivered events.
//
// Extend the pipeline by adding a Status, registering its edges in the edge
// table, and teaching effectsFor which side effects the new entry emits.
package workflow
