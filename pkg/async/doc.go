// Package async runs background work with panic recovery and timeouts.
//
// SafeGo starts a single fire-and-forget task whose failures are logged.
// Batch fans a slice out over a bounded number of goroutines and reports
// one error slot per item, which is how the stale membership sweeper
// refreshes a page of memberships.
package async
