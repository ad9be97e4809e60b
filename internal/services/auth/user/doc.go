// Package user holds the credential directory behind the auth routes.
//
// The directory is an in-memory mock seeded with three accounts. Passwords
// are bcrypt hashed when the directory is built and never leave the package
// in clear text.
package user
