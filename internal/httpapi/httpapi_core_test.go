// Package httpapi tests cover listing, move, remove, and location scope.
package httpapi

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"bunsho/internal/auth"
	"bunsho/internal/files"
)

func seedTree(t *testing.T, root string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, "photos"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0o600); err != nil {
		t.Fatalf("writefile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "photos", "cat.png"), []byte("\x89PNG\r\n\x1a\n"), 0o600); err != nil {
		t.Fatalf("writefile: %v", err)
	}
}

// TestList returns the folder listing wrapped in a listing object.
func TestList(t *testing.T) {
	e := newTestEnv(t)
	seedTree(t, e.root)
	access, _ := e.login(t, "admin", "admin")

	w := e.do(t, "GET", "/api/core/ls/0/", access, nil)
	if w.Code != 200 {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Listing []files.Entry `json:"listing"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Listing) != 2 {
		t.Fatalf("listing = %+v", resp.Listing)
	}
	for _, entry := range resp.Listing {
		switch entry.Name {
		case "photos":
			if !entry.IsDirectory || entry.Size != nil || entry.MIMEType != nil {
				t.Fatalf("photos entry = %+v", entry)
			}
		case "notes.txt":
			if entry.IsDirectory || entry.Size == nil || entry.MIMEType == nil {
				t.Fatalf("notes.txt entry = %+v", entry)
			}
		default:
			t.Fatalf("unexpected entry %q", entry.Name)
		}
	}

	// Subfolders list the same way.
	w = e.do(t, "GET", "/api/core/ls/0/photos", access, nil)
	if w.Code != 200 {
		t.Fatalf("subfolder status=%d body=%s", w.Code, w.Body.String())
	}
}

// TestList_Errors covers missing folders and bad location indices.
func TestList_Errors(t *testing.T) {
	e := newTestEnv(t)
	seedTree(t, e.root)
	access, _ := e.login(t, "admin", "admin")

	if w := e.do(t, "GET", "/api/core/ls/0/nope", access, nil); w.Code != 400 {
		t.Fatalf("missing folder: status=%d", w.Code)
	}
	if w := e.do(t, "GET", "/api/core/ls/0/notes.txt", access, nil); w.Code != 400 {
		t.Fatalf("file target: status=%d", w.Code)
	}
	if w := e.do(t, "GET", "/api/core/ls/7/", access, nil); w.Code != 400 {
		t.Fatalf("bad index: status=%d", w.Code)
	}
	if w := e.do(t, "GET", "/api/core/ls/x/", access, nil); w.Code != 400 {
		t.Fatalf("non-numeric index: status=%d", w.Code)
	}
}

// TestLocationScope forbids locations outside the token's claim set.
func TestLocationScope(t *testing.T) {
	e := newTestEnv(t)
	seedTree(t, e.root)

	scoped := e.token(t, "viewer", auth.LocationSet{Names: []string{"other"}}, auth.Permissions{})
	w := e.do(t, "GET", "/api/core/ls/0/", scoped, nil)
	if w.Code != 403 {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if msg := decodeError(t, w).ErrorMsg; msg != msgLocationForbidden {
		t.Fatalf("error_msg = %q", msg)
	}

	allowed := e.token(t, "viewer", auth.LocationSet{Names: []string{"media"}}, auth.Permissions{})
	if w := e.do(t, "GET", "/api/core/ls/0/", allowed, nil); w.Code != 200 {
		t.Fatalf("allowed: status=%d body=%s", w.Code, w.Body.String())
	}
}

// TestMove_Rename renames within the location when rename is true.
func TestMove_Rename(t *testing.T) {
	e := newTestEnv(t)
	seedTree(t, e.root)
	access, _ := e.login(t, "admin", "admin")

	body := map[string]any{"new_path": "/renamed.txt", "rename": true}
	if w := e.do(t, "PATCH", "/api/core/mv/0/notes.txt", access, body); w.Code != 200 {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(e.root, "renamed.txt")); err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.root, "notes.txt")); !os.IsNotExist(err) {
		t.Fatalf("old name still present")
	}
}

// TestMove_IntoFolder moves into a directory when rename is false.
func TestMove_IntoFolder(t *testing.T) {
	e := newTestEnv(t)
	seedTree(t, e.root)
	access, _ := e.login(t, "admin", "admin")

	body := map[string]any{"new_path": "/photos", "rename": false}
	if w := e.do(t, "PATCH", "/api/core/mv/0/notes.txt", access, body); w.Code != 200 {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(e.root, "photos", "notes.txt")); err != nil {
		t.Fatalf("moved file missing: %v", err)
	}
}

// TestMove_Errors covers bad bodies, collisions, traversal, and permission.
func TestMove_Errors(t *testing.T) {
	e := newTestEnv(t)
	seedTree(t, e.root)
	access, _ := e.login(t, "admin", "admin")

	// The rename flag is required, not defaulted.
	if w := e.do(t, "PATCH", "/api/core/mv/0/notes.txt", access, map[string]any{"new_path": "/x"}); w.Code != 400 {
		t.Fatalf("missing rename flag: status=%d", w.Code)
	}
	if w := e.do(t, "PATCH", "/api/core/mv/0/notes.txt", access, map[string]any{"rename": true}); w.Code != 400 {
		t.Fatalf("missing new_path: status=%d", w.Code)
	}

	// Rename collision with an existing name.
	body := map[string]any{"new_path": "/photos", "rename": true}
	w := e.do(t, "PATCH", "/api/core/mv/0/notes.txt", access, body)
	if w.Code != 400 {
		t.Fatalf("collision: status=%d body=%s", w.Code, w.Body.String())
	}
	if msg := decodeError(t, w).ErrorMsg; msg != msgCollision {
		t.Fatalf("error_msg = %q", msg)
	}

	// Traversal in the destination.
	body = map[string]any{"new_path": "/../../escape", "rename": true}
	w = e.do(t, "PATCH", "/api/core/mv/0/notes.txt", access, body)
	if w.Code != 400 {
		t.Fatalf("traversal: status=%d", w.Code)
	}
	if msg := decodeError(t, w).ErrorMsg; msg != msgTraversal {
		t.Fatalf("error_msg = %q", msg)
	}

	// Missing source.
	body = map[string]any{"new_path": "/x", "rename": true}
	if w := e.do(t, "PATCH", "/api/core/mv/0/ghost.txt", access, body); w.Code != 404 {
		t.Fatalf("missing source: status=%d", w.Code)
	}

	// No move permission.
	noMove := e.token(t, "viewer", auth.AllLocations(), auth.Permissions{Write: true, Delete: true})
	if w := e.do(t, "PATCH", "/api/core/mv/0/notes.txt", noMove, body); w.Code != 403 {
		t.Fatalf("no permission: status=%d", w.Code)
	}
}

// TestRemove deletes files and folders behind the delete permission.
func TestRemove(t *testing.T) {
	e := newTestEnv(t)
	seedTree(t, e.root)
	access, _ := e.login(t, "admin", "admin")

	if w := e.do(t, "DELETE", "/api/core/rm/0/notes.txt", access, nil); w.Code != 200 {
		t.Fatalf("file: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := e.do(t, "DELETE", "/api/core/rm/0/photos", access, nil); w.Code != 200 {
		t.Fatalf("folder: status=%d body=%s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(e.root, "photos")); !os.IsNotExist(err) {
		t.Fatalf("folder still present")
	}
	if w := e.do(t, "DELETE", "/api/core/rm/0/notes.txt", access, nil); w.Code != 404 {
		t.Fatalf("missing target: status=%d", w.Code)
	}

	noDelete := e.token(t, "viewer", auth.AllLocations(), auth.Permissions{Write: true, Move: true})
	if w := e.do(t, "DELETE", "/api/core/rm/0/anything", noDelete, nil); w.Code != 403 {
		t.Fatalf("no permission: status=%d", w.Code)
	}
}

// TestUpdateConfig reloads the config file for admins.
func TestUpdateConfig(t *testing.T) {
	e := newTestEnv(t)
	access, _ := e.login(t, "admin", "admin")

	if w := e.do(t, "POST", "/api/core/update-cfg", access, nil); w.Code != 200 {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
