// Package audit records permission-affecting changes as immutable entries.
//
// Recording is best effort. A Recorder never returns a write failure to the
// mutation that triggered it; failures are logged and counted instead, and the
// mutation stands.
//
// Entries go to a Sink. The stores in pkg/storage implement Sink directly; other
// sinks publish entries to a Redis stream or write them as JSON lines, and
// MultiSink fans out to several at once. Archiver copies stored entries to S3 in
// daily NDJSON objects for long-term retention.
//
//	recorder := audit.NewRecorder(audit.NewMultiSink(store, audit.NewRedisStreamSink(rdb, "entitle:audit")),
//		audit.WithLogger(logger), audit.WithMetrics(metrics))
//	id := recorder.Record(ctx, audit.ActionRoleAssigned, orgID, actorID,
//		&audit.Target{UserID: userID, RoleID: roleID}, nil)
package audit
