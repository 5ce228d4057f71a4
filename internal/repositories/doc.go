// Package repositories implements persistence for users and generation history.
//
// Key Implementations:
//   - [GenerationRepository] : SQLite history of finished generations, newest first
//   - [UserRepository] : SQLite user store keyed by unique username
//   - [MongoUserStore] : MongoDB user store with a unique username index
//
// Both user stores report a taken username as shared.ErrUserExists and a missing one as
// shared.ErrUserNotFound. Usernames are matched exactly, case included.
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
