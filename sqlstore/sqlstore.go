// Package sqlstore provides MySQL-backed implementations of
// authcore.UserStore and session.Registry.
//
// Expected schema:
//
//	CREATE TABLE users (
//	    id             CHAR(36)     NOT NULL PRIMARY KEY,
//	    email          VARCHAR(255) NOT NULL UNIQUE,
//	    name           VARCHAR(255) NOT NULL,
//	    password_hash  VARCHAR(255) NOT NULL,
//	    role           VARCHAR(16)  NOT NULL DEFAULT 'USER',
//	    email_verified TINYINT(1)   NOT NULL DEFAULT 0,
//	    created_at     DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    updated_at     DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
//	);
//
//	CREATE TABLE sessions (
//	    id         CHAR(36)   NOT NULL PRIMARY KEY,
//	    user_id    CHAR(36)   NOT NULL,
//	    parent_id  CHAR(36)   NULL,
//	    revoked    TINYINT(1) NOT NULL DEFAULT 0,
//	    created_at DATETIME   NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    rotated_at DATETIME   NULL,
//	    KEY idx_sessions_user (user_id)
//	);
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/keshvara/authcore"
	"github.com/keshvara/authcore/session"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry violation.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}

// UserStore is a MySQL-backed authcore.UserStore over the users table.
type UserStore struct {
	db *sql.DB
}

// NewUserStore wraps db.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = "id, email, name, password_hash, role, email_verified, created_at, updated_at"

func (s *UserStore) scanUser(row *sql.Row) (*authcore.User, error) {
	var u authcore.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	u.Role = authcore.Role(role)
	return &u, nil
}

// GetByEmail implements authcore.UserStore.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*authcore.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", email)
	return s.scanUser(row)
}

// GetByID implements authcore.UserStore.
func (s *UserStore) GetByID(ctx context.Context, id string) (*authcore.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	return s.scanUser(row)
}

// Create implements authcore.UserStore.
func (s *UserStore) Create(ctx context.Context, input authcore.CreateUserInput) (*authcore.User, error) {
	id := uuid.NewString()
	email := strings.ToLower(strings.TrimSpace(input.Email))

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash, role) VALUES (?, ?, ?, ?, ?)",
		id, email, input.Name, input.PasswordHash, string(input.Role))
	if err != nil {
		if isDuplicateKey(err) {
			return nil, authcore.ErrEmailInUse
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	return s.GetByID(ctx, id)
}

// UpdatePasswordHash implements authcore.UserStore.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

// MarkEmailVerified implements authcore.UserStore.
func (s *UserStore) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET email_verified = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

// SessionRegistry is a MySQL-backed session.Registry over the sessions
// table. Revoke relies on a conditional UPDATE for its single-winner
// guarantee.
type SessionRegistry struct {
	db *sql.DB
}

// NewSessionRegistry wraps db.
func NewSessionRegistry(db *sql.DB) *SessionRegistry {
	return &SessionRegistry{db: db}
}

// Create implements session.Registry.
func (r *SessionRegistry) Create(ctx context.Context, userID, parentID string) (*session.Session, error) {
	sess := &session.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	var parent sql.NullString
	if parentID != "" {
		parent = sql.NullString{String: parentID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, parent_id, revoked, created_at) VALUES (?, ?, ?, 0, ?)",
		sess.ID, userID, parent, sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return sess, nil
}

// Get implements session.Registry.
func (r *SessionRegistry) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	var sess session.Session
	var parent sql.NullString
	var rotated sql.NullTime

	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, parent_id, revoked, created_at, rotated_at FROM sessions WHERE id = ? LIMIT 1",
		sessionID).Scan(&sess.ID, &sess.UserID, &parent, &sess.Revoked, &sess.CreatedAt, &rotated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}

	if parent.Valid {
		sess.ParentID = parent.String
	}
	if rotated.Valid {
		sess.RotatedAt = rotated.Time
	}
	return &sess, nil
}

// Revoke implements session.Registry. The WHERE revoked = 0 clause makes
// the update a compare-and-set: of any number of concurrent callers,
// exactly one sees RowsAffected = 1.
func (r *SessionRegistry) Revoke(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET revoked = 1, rotated_at = ? WHERE id = ? AND revoked = 0",
		time.Now().UTC(), sessionID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx,
		"SELECT 1 FROM sessions WHERE id = ? LIMIT 1", sessionID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, session.ErrNotFound
		}
		return false, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return false, nil
}

// RevokeAllForUser implements session.Registry.
func (r *SessionRegistry) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET revoked = 1, rotated_at = ? WHERE user_id = ? AND revoked = 0",
		time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return nil
}
