package blackboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by session id so that
// many sessions (and many warren processes) can share one Redis server.
//
// Key pattern: warren:{session_id}:{entity}
// Channel pattern: warren:{session_id}:{event_type}_events

// SnapshotKey returns the Redis key holding a session's full JSON snapshot.
// Pattern: warren:{session_id}:snapshot
func SnapshotKey(sessionID string) string {
	return fmt.Sprintf("warren:%s:snapshot", sessionID)
}

// EntryEventsChannel returns the Pub/Sub channel carrying appended entries.
// Pattern: warren:{session_id}:entry_events
func EntryEventsChannel(sessionID string) string {
	return fmt.Sprintf("warren:%s:entry_events", sessionID)
}

// SnapshotKeyPattern matches every session snapshot key, for SCAN.
const SnapshotKeyPattern = "warren:*:snapshot"

// sessionIDFromSnapshotKey extracts the session id from a snapshot key.
// Returns "" if the key does not follow the snapshot pattern.
func sessionIDFromSnapshotKey(key string) string {
	const prefix, suffix = "warren:", ":snapshot"
	if len(key) <= len(prefix)+len(suffix) {
		return ""
	}
	if key[:len(prefix)] != prefix || key[len(key)-len(suffix):] != suffix {
		return ""
	}
	return key[len(prefix) : len(key)-len(suffix)]
}
