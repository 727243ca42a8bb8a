package httpapi

import (
	"encoding/json"
	"net/http"

	"bunsho/internal/auth"
)

// errorBody is the wire shape of every API failure:
// {"error": "<status text>", "error_msg": "<detail>"}.
type errorBody struct {
	Error    string `json:"error"`
	ErrorMsg string `json:"error_msg"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: http.StatusText(status), ErrorMsg: msg})
}

// writeTokenError maps token engine decode failures onto 401 responses
// with the failure-specific message.
func writeTokenError(w http.ResponseWriter, err error) {
	var msg string
	switch err {
	case auth.ErrTokenExpired:
		msg = "This token has expired."
	case auth.ErrTokenBadIssuer:
		msg = "Invalid token issuer."
	case auth.ErrTokenBlacklisted:
		msg = "This token has been invalidated."
	default:
		msg = "An error occurred while trying to decode the token."
	}
	writeError(w, http.StatusUnauthorized, msg)
}

// Shared error messages reused across handlers.
const (
	msgBadArguments      = "Bad argument values were provided."
	msgTraversal         = "Directory traversal outside of the root location is not allowed."
	msgCollision         = "There is already a file/folder with the same name at the destination."
	msgNotFound          = "File or folder was not found."
	msgBadCredentials    = "Given credentials were invalid."
	msgNeedAdmin         = "Insufficient permissions to perform administrator actions."
	msgLocationForbidden = "Insufficient permissions to access this location."
	msgServerError       = "An unexpected server error occurred."
)
