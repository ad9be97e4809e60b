// Package chat implements the realtime room chat transport.
//
// It keeps WebSocket lifecycle, the per-connection protocol state machine, and
// room fan-out isolated from credentials and history, which are owned by the
// auth and history services.
package chat
