// Package store is the client's local key/value storage.
//
// Two scopes mirror what a browser offers a web front-end:
//
//   - SQLiteRepository persists across restarts (bearer token, stable client
//     id, refresh cookies). The schema is managed by embedded goose
//     migrations, see Open.
//   - MemoryRepository lives for a single run (per-run session id).
//
// Both implement Repository. A missing key reads as (nil, nil).
package store
