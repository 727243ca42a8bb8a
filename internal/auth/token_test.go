// Package auth tests cover token issuance, verification, and revocation.
package auth

import (
	"errors"
	"testing"
	"time"
)

// fakeBlacklist is a swappable revocation check for engine tests.
type fakeBlacklist struct {
	cutoffs map[string]int64
}

func (f *fakeBlacklist) IsRevoked(username string, issuedAt int64) bool {
	cutoff, ok := f.cutoffs[username]
	return ok && issuedAt <= cutoff
}

func testEngine(bl Blacklist) *Engine {
	return NewEngine("access-key", "refresh-key", 15*time.Minute, 24*time.Hour, bl)
}

// TestAccessTokenRoundTrip issues and decodes an access token with full claims.
func TestAccessTokenRoundTrip(t *testing.T) {
	e := testEngine(nil)
	locs := LocationSet{Names: []string{"media", "docs"}}
	perms := Permissions{Write: true, Move: true}

	tok, err := e.IssueAccess("alice", locs, perms)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := e.DecodeAccess(tok)
	if err != nil {
		t.Fatalf("DecodeAccess: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("uname=%q", claims.Username)
	}
	if claims.RegisteredClaims.Issuer != Issuer {
		t.Fatalf("iss=%q", claims.RegisteredClaims.Issuer)
	}
	if claims.AuthorizedLocations == nil || claims.AuthorizedLocations.All {
		t.Fatalf("unexpected locations claim: %+v", claims.AuthorizedLocations)
	}
	if !claims.AuthorizedLocations.Contains("media") || claims.AuthorizedLocations.Contains("secret") {
		t.Fatalf("location membership wrong: %+v", claims.AuthorizedLocations)
	}
	if claims.Permissions == nil || !claims.Permissions.Write || claims.Permissions.Admin {
		t.Fatalf("permissions wrong: %+v", claims.Permissions)
	}
}

// TestRefreshTokenRoundTrip issues and decodes an identity-only refresh token.
func TestRefreshTokenRoundTrip(t *testing.T) {
	e := testEngine(nil)
	tok, expiry, err := e.IssueRefresh("alice")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if until := time.Until(expiry); until < 23*time.Hour || until > 25*time.Hour {
		t.Fatalf("expiry %v not ~24h out", expiry)
	}
	claims, err := e.DecodeRefresh(tok)
	if err != nil {
		t.Fatalf("DecodeRefresh: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("uname=%q", claims.Username)
	}
	if claims.AuthorizedLocations != nil || claims.Permissions != nil {
		t.Fatalf("refresh token must not carry authorization claims")
	}
}

// TestTokenKeySeparation rejects tokens presented to the wrong verifier.
func TestTokenKeySeparation(t *testing.T) {
	e := testEngine(nil)
	access, err := e.IssueAccess("alice", AllLocations(), AllPermissions())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, err := e.IssueRefresh("alice")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := e.DecodeRefresh(access); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("access-as-refresh: %v", err)
	}
	if _, err := e.DecodeAccess(refresh); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("refresh-as-access: %v", err)
	}
}

// TestTokenExpiry rejects an access token past its lifetime.
func TestTokenExpiry(t *testing.T) {
	e := testEngine(nil)
	issued := time.Now()
	e.now = func() time.Time { return issued }
	tok, err := e.IssueAccess("alice", AllLocations(), AllPermissions())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	e.now = func() time.Time { return issued.Add(14 * time.Minute) }
	if _, err := e.DecodeAccess(tok); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}
	e.now = func() time.Time { return issued.Add(16 * time.Minute) }
	if _, err := e.DecodeAccess(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

// TestTokenGarbage rejects strings that are not tokens at all.
func TestTokenGarbage(t *testing.T) {
	e := testEngine(nil)
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := e.DecodeAccess(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("DecodeAccess(%q): %v", tok, err)
		}
	}
}

// TestTokenBlacklist invalidates tokens issued at or before the cutoff.
func TestTokenBlacklist(t *testing.T) {
	bl := &fakeBlacklist{cutoffs: map[string]int64{}}
	e := testEngine(bl)
	issued := time.Now()
	e.now = func() time.Time { return issued }

	tok, err := e.IssueAccess("alice", AllLocations(), AllPermissions())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := e.DecodeAccess(tok); err != nil {
		t.Fatalf("decode before revoke: %v", err)
	}

	// Cutoff equal to iat invalidates the token.
	bl.cutoffs["alice"] = issued.Unix()
	if _, err := e.DecodeAccess(tok); !errors.Is(err, ErrTokenBlacklisted) {
		t.Fatalf("want ErrTokenBlacklisted, got %v", err)
	}

	// A token minted after the cutoff is valid again.
	e.now = func() time.Time { return issued.Add(2 * time.Second) }
	fresh, err := e.IssueAccess("alice", AllLocations(), AllPermissions())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := e.DecodeAccess(fresh); err != nil {
		t.Fatalf("decode after cutoff: %v", err)
	}

	// Other subjects are unaffected.
	bob, err := e.IssueAccess("bob", AllLocations(), Permissions{})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := e.DecodeAccess(bob); err != nil {
		t.Fatalf("bob should be unaffected: %v", err)
	}
}

// TestLocationSetJSON checks the "all"-or-array wire form.
func TestLocationSetJSON(t *testing.T) {
	all := AllLocations()
	b, err := all.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(b) != `"all"` {
		t.Fatalf("all form = %s", b)
	}

	some := LocationSet{Names: []string{"media"}}
	b, err = some.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(b) != `["media"]` {
		t.Fatalf("array form = %s", b)
	}

	var s LocationSet
	if err := s.UnmarshalJSON([]byte(`"all"`)); err != nil || !s.All {
		t.Fatalf("unmarshal all: %v %+v", err, s)
	}
	if err := s.UnmarshalJSON([]byte(`["a","b"]`)); err != nil || s.All || len(s.Names) != 2 {
		t.Fatalf("unmarshal array: %v %+v", err, s)
	}
	if err := s.UnmarshalJSON([]byte(`"some"`)); err == nil {
		t.Fatalf(`only "all" is a valid string form`)
	}
	if err := s.UnmarshalJSON([]byte(`42`)); err == nil {
		t.Fatalf("numbers are not a valid form")
	}
}
