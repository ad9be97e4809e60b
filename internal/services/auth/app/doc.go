// Package app serves the credential REST routes under /api/auth.
package app
