// Package revocation records bearer tokens that were invalidated before their
// natural expiry. Entries are keyed by the verified token id ("jti"), never
// by the raw token string.
//
// The registry is shared between the HTTP logout path, which writes to it, and
// the realtime auth handshake, which reads it on every auth frame. Memory keeps
// entries in a sharded in-process map and purges expired entries on a timer;
// Redis keeps them in a shared keyspace with native key expiry.
package revocation
