// Package conversation holds per-user conversation state: the message
// history, the current intent, the plan or summary awaiting the user, and
// a human-readable trace. Sessions live in a TTL cache and each one is
// guarded by its own mutex, so a conversation is processed by one turn at
// a time while different users proceed in parallel.
package conversation
