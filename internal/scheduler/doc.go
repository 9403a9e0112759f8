// Package scheduler implements an in-process background task scheduler with
// a fixed concurrency cap, priority ordering, and retry-by-requeue. It backs
// the relay's fire-and-forget sync jobs (e.g. recording completed exchanges)
// so request handlers never block on persistence.
package scheduler
