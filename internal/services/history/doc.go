// Package history owns chat rooms and their persisted message log.
//
// Subpackages:
//   - app: /api/messages REST routes
//   - storage: room and message records plus the Store contract
//   - storage/sqlite: SQLite implementation with embedded migrations
package history
