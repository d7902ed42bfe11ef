package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Init initializes the database connection and runs migrations
func Init(dbPath string) (*DB, error) {
	// Ensure data directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY under load
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// migrate runs database migrations
func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE COLLATE NOCASE,
			password_hash TEXT,
			provider TEXT NOT NULL DEFAULT 'email',
			provider_user_id TEXT,
			user_metadata TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider_identity
			ON users(provider, provider_user_id) WHERE provider_user_id IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			refresh_token TEXT NOT NULL UNIQUE,
			expires_at INTEGER NOT NULL,
			revoked INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE TABLE IF NOT EXISTS recovery_tokens (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			used INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			tbl TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (tbl, id)
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			if !isDuplicateColumnError(err) {
				return err
			}
		}
	}

	return nil
}

// isDuplicateColumnError checks if error is about duplicate column
func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "duplicate column name") ||
		strings.Contains(errStr, "already exists")
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ============================================================================
// Users
// ============================================================================

const userColumns = "id, email, password_hash, provider, provider_user_id, user_metadata, created_at, updated_at"

// CreateUser inserts a new user
func (db *DB) CreateUser(ctx context.Context, user *User) error {
	metadata, err := json.Marshal(user.Metadata)
	if err != nil {
		return fmt.Errorf("marshal user metadata: %w", err)
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		user.ID, nullable(user.Email), nullable(user.PasswordHash), user.Provider, nullable(user.ProviderUserID),
		string(metadata), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	return err
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(ctx context.Context, id string) (*User, error) {
	return db.scanUser(db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetUserByEmail retrieves a user by e-mail, case-insensitively
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return db.scanUser(db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

// GetUserByProviderIdentity retrieves a federated user
func (db *DB) GetUserByProviderIdentity(ctx context.Context, provider, providerUserID string) (*User, error) {
	return db.scanUser(db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE provider = ? AND provider_user_id = ?",
		provider, providerUserID,
	))
}

// UpdateUserPassword replaces a user's password hash
func (db *DB) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, time.Now().Unix(), userID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (db *DB) scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var (
		email, passwordHash, providerUserID sql.NullString
		metadata                            string
		createdAt, updatedAt                int64
	)

	err := row.Scan(&user.ID, &email, &passwordHash, &user.Provider, &providerUserID, &metadata, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	user.Email = email.String
	user.PasswordHash = passwordHash.String
	user.ProviderUserID = providerUserID.String
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	user.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if err := json.Unmarshal([]byte(metadata), &user.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal user metadata: %w", err)
	}

	return user, nil
}

// ============================================================================
// Sessions
// ============================================================================

const sessionColumns = "id, user_id, refresh_token, expires_at, revoked, created_at"

// CreateSession inserts a new session
func (db *DB) CreateSession(ctx context.Context, s *Session) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		s.ID, s.UserID, s.RefreshToken, s.ExpiresAt.Unix(), s.Revoked, s.CreatedAt.Unix(),
	)
	return err
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(ctx context.Context, id string) (*Session, error) {
	return scanSession(db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
}

// RotateSession replaces the refresh token and extends the expiry
func (db *DB) RotateSession(ctx context.Context, id, refreshToken string, expiresAt time.Time) error {
	res, err := db.ExecContext(ctx,
		"UPDATE sessions SET refresh_token = ?, expires_at = ? WHERE id = ? AND revoked = 0",
		refreshToken, expiresAt.Unix(), id,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// RevokeSession marks a session revoked
func (db *DB) RevokeSession(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, "UPDATE sessions SET revoked = 1 WHERE id = ?", id)
	return err
}

func scanSession(row *sql.Row) (*Session, error) {
	s := &Session{}
	var expiresAt, createdAt int64

	err := row.Scan(&s.ID, &s.UserID, &s.RefreshToken, &expiresAt, &s.Revoked, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return s, nil
}

// ============================================================================
// Recovery tokens
// ============================================================================

// CreateRecoveryToken inserts a new recovery token
func (db *DB) CreateRecoveryToken(ctx context.Context, t *RecoveryToken) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO recovery_tokens (token, user_id, expires_at, used, created_at) VALUES (?, ?, ?, ?, ?)",
		t.Token, t.UserID, t.ExpiresAt.Unix(), t.Used, t.CreatedAt.Unix(),
	)
	return err
}

// ConsumeRecoveryToken marks an unused, unexpired token used and returns its user ID
func (db *DB) ConsumeRecoveryToken(ctx context.Context, token string, now time.Time) (string, error) {
	var userID string
	err := db.QueryRowContext(ctx,
		"UPDATE recovery_tokens SET used = 1 WHERE token = ? AND used = 0 AND expires_at > ? RETURNING user_id",
		token, now.Unix(),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

// ============================================================================
// Housekeeping
// ============================================================================

// PurgeExpired deletes sessions and recovery tokens that expired before now,
// plus revoked sessions and used tokens.
func (db *DB) PurgeExpired(ctx context.Context, now time.Time) (sessions int64, tokens int64, err error) {
	res, err := db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ? OR revoked = 1", now.Unix())
	if err != nil {
		return 0, 0, err
	}
	sessions, _ = res.RowsAffected()

	res, err = db.ExecContext(ctx, "DELETE FROM recovery_tokens WHERE expires_at <= ? OR used = 1", now.Unix())
	if err != nil {
		return sessions, 0, err
	}
	tokens, _ = res.RowsAffected()

	return sessions, tokens, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
