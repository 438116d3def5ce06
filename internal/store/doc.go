// Package store persists notification preferences, user records and pending
// digest entries.
//
// # Contract
//
// Preference and user stores implement types.PreferenceStore and
// types.UserDirectory. A missing record is reported as nil with no error so
// that callers can apply their own defaults.
//
// Digest queues implement types.DigestQueue. Ack(userID, n) removes exactly the
// first n entries, so an entry appended between Pending and Ack is never lost.
//
// Implementations:
//
//	MemoryStore        preferences + users, in process
//	SQLiteStore        preferences + users, modernc.org/sqlite
//	MemoryDigestQueue  pending digests, in process
//	RedisDigestQueue   pending digests, redis lists with a Lua ack
package store
