// Package app serves the room and message history routes under /api/messages.
package app
