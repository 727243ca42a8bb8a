// Package store persists users and refresh tokens in SQLite.
package store

import "bunsho/internal/auth"

// User is an account row. The location set and permission bitset are
// stored as JSON text columns.
type User struct {
	Username            string
	PasswordHash        string
	AuthorizedLocations auth.LocationSet
	Permissions         auth.Permissions
}

// RefreshToken is a durable refresh-token row. The steady state is one
// active row per user: login reuses a non-expired row instead of
// minting a new one.
type RefreshToken struct {
	Token    string
	Expiry   int64
	Username string
}
