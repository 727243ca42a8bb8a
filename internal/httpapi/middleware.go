package httpapi

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"bunsho/internal/auth"
	"bunsho/internal/config"
)

type ctxKey string

const (
	ctxClaims   ctxKey = "claims"
	ctxLocation ctxKey = "location"
)

// claimsFrom returns the verified access-token claims stored by
// withAuth. Handlers behind withAuth can rely on its presence.
func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(ctxClaims).(*auth.Claims)
	return c
}

// locationFrom returns the location resolved by withLocation.
func locationFrom(ctx context.Context) config.Location {
	loc, _ := ctx.Value(ctxLocation).(config.Location)
	return loc
}

// withAuth requires a bearer access token, verifies it (signature,
// expiry, issuer, blacklist), and stores the claims in the request
// context. All authorization data for the request comes from these
// claims; the credential store is not consulted on this path.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Bearer authorization is required.")
			return
		}
		claims, err := s.Tokens.DecodeAccess(token)
		if err != nil {
			writeTokenError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxClaims, claims)
		next(w, r.WithContext(ctx))
	}
}

// withLocation resolves the {index} path value into a configured
// location and enforces the token's location scope. It runs after
// withAuth.
func (s *Server) withLocation(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Location index was not provided.")
			return
		}
		loc, err := s.Cfg.LocationAt(index)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Location index was not provided.")
			return
		}
		claims := claimsFrom(r.Context())
		if claims.AuthorizedLocations == nil || !claims.AuthorizedLocations.Contains(loc.Name) {
			writeError(w, http.StatusForbidden, msgLocationForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), ctxLocation, loc)
		next(w, r.WithContext(ctx))
	}
}

// permissions returns the claim set's capability bits, or the zero
// bitset when the token carried none.
func permissions(claims *auth.Claims) auth.Permissions {
	if claims == nil || claims.Permissions == nil {
		return auth.Permissions{}
	}
	return *claims.Permissions
}

// forbid writes the capability-specific 403.
func forbid(w http.ResponseWriter, action string) {
	writeError(w, http.StatusForbidden, "Insufficient permissions to "+action+".")
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	return tok, tok != ""
}

// withRecover guards handlers against panics and returns a 500.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.Logger.Error("panic", "panic", v, "stack", string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, msgServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-content-type-options", "nosniff")
		w.Header().Set("x-frame-options", "DENY")
		w.Header().Set("referrer-policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
