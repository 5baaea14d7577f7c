// Package approval implements the state machine that gates outbound sends
// behind a human decision.
//
// A drafted reply sits in pending_approval until a reviewer approves,
// edits, or rejects it through the bot callback or the web form; both
// front-ends funnel into Service.Decide so the transitions cannot diverge.
// Idempotency is enforced with conditional UPDATEs on the persisted status
// rather than in-memory locks, which keeps duplicate webhook deliveries and
// concurrent decisions safe.
package approval
