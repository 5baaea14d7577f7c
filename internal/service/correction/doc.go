// Package correction records human overrides of drafted replies and learns
// reusable behavioral rules from them.
//
// Capture is synchronous and cheap; rule extraction and promotion into
// semantic memory run in the background and never block or fail the
// approval flow. A reconciler pass retries promotions that did not stick,
// in small batches with a bounded attempt count.
package correction
