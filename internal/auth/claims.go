// Package auth implements password hashing and signed session tokens.
package auth

import (
	"encoding/json"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Permissions is the per-user capability bitset embedded in access
// tokens and stored with the user record.
type Permissions struct {
	Admin  bool `json:"admin"`
	Write  bool `json:"write"`
	Move   bool `json:"move"`
	Delete bool `json:"delete"`
	Share  bool `json:"share"`
}

// AllPermissions grants every capability. Used for the seeded admin user.
func AllPermissions() Permissions {
	return Permissions{Admin: true, Write: true, Move: true, Delete: true, Share: true}
}

// LocationSet is a user's authorized-locations claim: either every
// configured location ("all") or an explicit set of location names.
// The wire form is the JSON string "all" or a JSON array of names.
type LocationSet struct {
	All   bool
	Names []string
}

// AllLocations grants access to every configured location.
func AllLocations() LocationSet {
	return LocationSet{All: true}
}

// Contains reports whether the set authorizes the named location.
func (s LocationSet) Contains(name string) bool {
	if s.All {
		return true
	}
	for _, n := range s.Names {
		if n == name {
			return true
		}
	}
	return false
}

// MarshalJSON encodes "all" or the explicit name array.
func (s LocationSet) MarshalJSON() ([]byte, error) {
	if s.All {
		return json.Marshal("all")
	}
	if s.Names == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Names)
}

// UnmarshalJSON accepts the string "all" or an array of names.
func (s *LocationSet) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		if str != "all" {
			return errors.New(`authorized_locations string must be "all"`)
		}
		*s = LocationSet{All: true}
		return nil
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return errors.New("invalid authorized_locations value")
	}
	*s = LocationSet{Names: names}
	return nil
}

// Claims is the signed claim set for both token kinds. Access tokens
// carry the full authorization claims; refresh tokens carry identity
// only, since authorization is re-resolved from the credential store at
// refresh time.
type Claims struct {
	jwt.RegisteredClaims

	Username            string       `json:"uname"`
	AuthorizedLocations *LocationSet `json:"authorized_locations,omitempty"`
	Permissions         *Permissions `json:"permissions,omitempty"`
}

// IssuedAtUnix returns the iat claim in unix seconds, or 0 when absent.
func (c *Claims) IssuedAtUnix() int64 {
	if c.IssuedAt == nil {
		return 0
	}
	return c.IssuedAt.Unix()
}
