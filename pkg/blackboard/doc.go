// Package blackboard provides the shared, durable memory that every warren
// agent in a session reads from and writes to.
//
// # Overview
//
// A session's blackboard pairs two structures:
//
//   - an append-only interaction log of Entry records (who said what to whom,
//     and of which kind), whose only valid ordering is append order;
//   - a last-write-wins artifact store mapping names to opaque JSON values
//     (for example the last tool result).
//
// The pair is a Session, and the Session is the unit of durability: every
// mutating call (Append, SetArtifact) serializes the whole snapshot through a
// Store before returning. There is no write-ahead log and no partial update.
//
// # Availability over durability
//
// Append never fails its caller. When the Store rejects a snapshot the error
// is logged and the entry stays in memory, so an agent loop is not stalled by
// a storage hiccup. The next successful write persists everything, including
// the entries that were only held in memory.
//
// # Stores
//
// FileStore writes one JSON document per session and replaces it with an
// atomic rename. RedisStore keeps the snapshot under a single key and
// publishes every appended entry for live watchers.
//
// Key pattern: warren:{session_id}:snapshot
// Channel pattern: warren:{session_id}:entry_events
//
// # Usage Example
//
//	store := blackboard.NewFileStore("memory_store")
//	board, err := blackboard.Open(ctx, store, "ProjectX")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	board.Append(ctx, "User", "Orchestrator", "What were total sales?", blackboard.KindText)
//	fmt.Print(board.RecentContext(10))
//	// [User -> Orchestrator]: What were total sales?
package blackboard
