// Package store provides a SQLite-backed trace log for form store sessions.
//
// A Recorder implements engine.Observer. It buffers records in memory while
// the engine holds its lock and writes them in one SQL transaction on Flush.
//
// # Critical Patterns
//
// Logical ordering
//   - Records are ordered by seq, the engine's logical clock, never by time
//   - All reads include ORDER BY seq ASC
//
// Canonical values
//   - Values are stored as canonical JSON with an xxhash fingerprint
//   - Identical values produce identical rows across runs
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Records must belong to a session
package store
