// Package refresher recomputes persisted permission masks that have gone
// stale.
//
// The read path never writes, so a membership whose roles, tier or add-ons
// changed without going through Service keeps serving a resolution computed
// on the fly until something persists a new one. The Sweeper closes that gap:
// on each cron tick it asks the store for one page of active memberships
// whose cache is missing or older than the TTL, and calls RefreshAndStore on
// each with bounded concurrency. Whatever does not fit in the page is picked
// up on the next tick. Failures are logged and counted, never retried inline.
//
//	sweeper := refresher.New(store, checker, refresher.Config{TTL: 5 * time.Minute, Batch: 500},
//		refresher.WithLogger(logger), refresher.WithMetrics(metrics))
//	if err := sweeper.Start("@every 1m"); err != nil {
//		return err
//	}
//	defer sweeper.Stop()
package refresher
