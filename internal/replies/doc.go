// Package replies handles everything after a prospect writes back: the
// monitor pulls new inbound mail off sent threads, the acknowledgment gate
// decides whether an automatic receipt is safe to send, triage classifies
// each reply and prepares a grounded draft response, and the planner runs
// scheduled follow-ups for threads that stayed quiet.
//
// Two rules hold everywhere in this package: classification and drafting
// are automatic, sending a substantive response is not; and a reply,
// bounce, or opt-out immediately cancels any follow-ups still pending for
// that lead.
package replies
