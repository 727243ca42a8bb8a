package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"bunsho/internal/auth"
)

// ErrNotFound reports a missing row for lookups that require one.
var ErrNotFound = errors.New("not found")

// CreateUser inserts a new user row.
func (d *DB) CreateUser(ctx context.Context, u User) error {
	if u.Username == "" || u.PasswordHash == "" {
		return errors.New("username and password hash are required")
	}
	locs, err := json.Marshal(u.AuthorizedLocations)
	if err != nil {
		return err
	}
	perms, err := json.Marshal(u.Permissions)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `
INSERT INTO users(username, password_hash, authorized_locations, permissions)
VALUES(?, ?, ?, ?)
`, u.Username, u.PasswordHash, string(locs), string(perms))
	return err
}

// GetUser looks up a user by username.
func (d *DB) GetUser(ctx context.Context, username string) (*User, bool, error) {
	var (
		u           User
		locs, perms string
	)
	err := d.sql.QueryRowContext(ctx, `
SELECT username, password_hash, authorized_locations, permissions
FROM users WHERE username=?
`, username).Scan(&u.Username, &u.PasswordHash, &locs, &perms)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(locs), &u.AuthorizedLocations); err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(perms), &u.Permissions); err != nil {
		return nil, false, err
	}
	return &u, true, nil
}

// ListUsers returns all users sorted by username.
func (d *DB) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT username, password_hash, authorized_locations, permissions
FROM users ORDER BY username ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var (
			u           User
			locs, perms string
		)
		if err := rows.Scan(&u.Username, &u.PasswordHash, &locs, &perms); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(locs), &u.AuthorizedLocations); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(perms), &u.Permissions); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Each update applies exactly one field group. The request layer names
// the field explicitly instead of inferring it from non-empty values.

// UpdateUsername renames a user. Refresh-token rows follow via the
// ON UPDATE CASCADE foreign key.
func (d *DB) UpdateUsername(ctx context.Context, username, newUsername string) error {
	if newUsername == "" {
		return errors.New("new username is required")
	}
	return d.updateOne(ctx, `UPDATE users SET username=? WHERE username=?`, newUsername, username)
}

// UpdatePassword replaces a user's password hash.
func (d *DB) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	if passwordHash == "" {
		return errors.New("password hash is required")
	}
	return d.updateOne(ctx, `UPDATE users SET password_hash=? WHERE username=?`, passwordHash, username)
}

// UpdateLocations replaces a user's authorized-locations set.
func (d *DB) UpdateLocations(ctx context.Context, username string, locs auth.LocationSet) error {
	b, err := json.Marshal(locs)
	if err != nil {
		return err
	}
	return d.updateOne(ctx, `UPDATE users SET authorized_locations=? WHERE username=?`, string(b), username)
}

// UpdatePermissions replaces a user's permission bitset.
func (d *DB) UpdatePermissions(ctx context.Context, username string, perms auth.Permissions) error {
	b, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return d.updateOne(ctx, `UPDATE users SET permissions=? WHERE username=?`, string(b), username)
}

func (d *DB) updateOne(ctx context.Context, query string, value any, username string) error {
	res, err := d.sql.ExecContext(ctx, query, value, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user; refresh tokens cascade.
func (d *DB) DeleteUser(ctx context.Context, username string) error {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM users WHERE username=?`, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertRefreshToken stores a refresh token with its expiry.
func (d *DB) InsertRefreshToken(ctx context.Context, token string, expiry int64, username string) error {
	if token == "" || username == "" {
		return errors.New("token and username are required")
	}
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO refresh_tokens(token, expiry, username) VALUES(?, ?, ?)
`, token, expiry, username)
	return err
}

// GetRefreshTokenByUsername returns the stored token row for a user.
func (d *DB) GetRefreshTokenByUsername(ctx context.Context, username string) (*RefreshToken, bool, error) {
	return d.getRefreshToken(ctx, `SELECT token, expiry, username FROM refresh_tokens WHERE username=?`, username)
}

// GetRefreshTokenByToken returns the row matching a presented token.
func (d *DB) GetRefreshTokenByToken(ctx context.Context, token string) (*RefreshToken, bool, error) {
	return d.getRefreshToken(ctx, `SELECT token, expiry, username FROM refresh_tokens WHERE token=?`, token)
}

func (d *DB) getRefreshToken(ctx context.Context, query, value string) (*RefreshToken, bool, error) {
	var t RefreshToken
	err := d.sql.QueryRowContext(ctx, query, value).Scan(&t.Token, &t.Expiry, &t.Username)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &t, true, nil
}

// DeleteRefreshToken removes a user's refresh-token row.
func (d *DB) DeleteRefreshToken(ctx context.Context, username string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE username=?`, username)
	return err
}

// DeleteExpiredRefreshTokens removes rows whose expiry has passed and
// reports how many were deleted.
func (d *DB) DeleteExpiredRefreshTokens(ctx context.Context, now int64) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expiry < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// nowUnix returns the current Unix timestamp in seconds.
func nowUnix() int64 { return time.Now().Unix() }
