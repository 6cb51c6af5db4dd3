package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UserStore persists users and bearer-token sessions.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a UserStore over the given database handle.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = "id, username, password_hash, role, active, created_at"

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var active int
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &active, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Active = active != 0
	return &u, nil
}

// GetUserByUsername returns the user with the given username, or nil.
func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return user, nil
}

// GetUserByID returns the user with the given ID, or nil.
func (s *UserStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// ListUsers returns all users ordered by username.
func (s *UserStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// CountUsers returns the number of accounts.
func (s *UserStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CreateUser inserts a user with an already-hashed password.
func (s *UserStore) CreateUser(ctx context.Context, username, passwordHash string, role Role) (*User, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)",
		username, passwordHash, string(role))
	if err != nil {
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user insert id: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// UpdateUserPassword replaces a user's password hash.
func (s *UserStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password for user %d: %w", id, err)
	}
	return nil
}

// UpdateUserRole changes a user's role.
func (s *UserStore) UpdateUserRole(ctx context.Context, id int64, role Role) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET role = ? WHERE id = ?", string(role), id)
	if err != nil {
		return fmt.Errorf("update role for user %d: %w", id, err)
	}
	return nil
}

// SetUserActive enables or disables an account. Disabling also revokes the
// user's sessions.
func (s *UserStore) SetUserActive(ctx context.Context, id int64, active bool) error {
	value := 0
	if active {
		value = 1
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE users SET active = ? WHERE id = ?", value, id); err != nil {
		return fmt.Errorf("set active for user %d: %w", id, err)
	}
	if !active {
		return s.RevokeUserSessions(ctx, id)
	}
	return nil
}

// CreateSession records a bearer-token session keyed by the token's ID.
func (s *UserStore) CreateSession(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		sessionID, userID, expiresAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// LookupSession returns the user ID of an unexpired session, or false.
func (s *UserStore) LookupSession(ctx context.Context, sessionID string) (int64, bool, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM sessions WHERE id = ? AND expires_at > datetime('now')",
		sessionID).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup session: %w", err)
	}
	return userID, true, nil
}

// RevokeSession deletes a session. Returns false when no such session exists.
func (s *UserStore) RevokeSession(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RevokeUserSessions deletes all sessions belonging to a user.
func (s *UserStore) RevokeUserSessions(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("revoke sessions for user %d: %w", userID, err)
	}
	return nil
}

// PurgeExpiredSessions drops sessions past their expiry.
func (s *UserStore) PurgeExpiredSessions(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= datetime('now')"); err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	return nil
}
