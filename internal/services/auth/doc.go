// Package auth owns credentials and bearer tokens for the chat backend.
//
// Subpackages:
//   - app: /api/auth REST routes
//   - bearer: token verification combined with the revocation registry
//   - token: HS256 token issue and verify
//   - user: in-memory credential directory
package auth
