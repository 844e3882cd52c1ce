package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dzerik/oauth-service/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id               TEXT PRIMARY KEY,
	provider         TEXT NOT NULL,
	provider_user_id TEXT NOT NULL,
	email            TEXT NOT NULL DEFAULT '',
	email_verified   INTEGER NOT NULL DEFAULT 0,
	name             TEXT NOT NULL DEFAULT '',
	picture          TEXT NOT NULL DEFAULT '',
	locale           TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL,
	UNIQUE (provider, provider_user_id)
);

CREATE TABLE IF NOT EXISTS tokens (
	id            TEXT PRIMARY KEY,
	subject_id    TEXT NOT NULL,
	provider      TEXT NOT NULL,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	id_token      TEXT NOT NULL DEFAULT '',
	token_type    TEXT NOT NULL DEFAULT 'Bearer',
	scope         TEXT NOT NULL DEFAULT '',
	issued_at     INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL,
	is_active     INTEGER NOT NULL DEFAULT 1,
	is_revoked    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tokens_subject_provider ON tokens (subject_id, provider, is_active);
CREATE INDEX IF NOT EXISTS idx_tokens_refresh ON tokens (refresh_token);
`

// SQLiteRepository implements Repository over a SQLite database. Token
// issuance runs deactivate-then-insert inside one transaction, so the
// single-active-token invariant holds even under crashes mid-sequence.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite-backed repository.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// CreateUser inserts a new user, assigning an id when absent.
func (r *SQLiteRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, provider, provider_user_id, email, email_verified, name, picture, locale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Provider, u.ProviderUserID, u.Email, boolToInt(u.EmailVerified),
		u.Name, u.Picture, u.Locale, toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

// GetUserByProviderID looks up a user by provider identity.
func (r *SQLiteRepository) GetUserByProviderID(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, provider, provider_user_id, email, email_verified, name, picture, locale, created_at, updated_at
		FROM users WHERE provider = ? AND provider_user_id = ?`,
		provider, providerUserID,
	)
	return scanUser(row)
}

// UpsertUser creates the user on first login and refreshes profile fields
// on subsequent logins, relying on the (provider, provider_user_id)
// unique constraint.
func (r *SQLiteRepository) UpsertUser(ctx context.Context, provider string, info *model.UserInfo) (*model.User, error) {
	now := toMillis(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, provider, provider_user_id, email, email_verified, name, picture, locale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_user_id) DO UPDATE SET
			email = excluded.email,
			email_verified = excluded.email_verified,
			name = excluded.name,
			picture = excluded.picture,
			locale = excluded.locale,
			updated_at = excluded.updated_at`,
		uuid.NewString(), provider, info.ProviderUserID, info.Email, boolToInt(info.EmailVerified),
		info.Name, info.Picture, info.Locale, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return r.GetUserByProviderID(ctx, provider, info.ProviderUserID)
}

// IssueToken deactivates prior active records and inserts the new record
// inside one transaction.
func (r *SQLiteRepository) IssueToken(ctx context.Context, rec *model.TokenRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE tokens SET is_active = 0
		WHERE subject_id = ? AND provider = ? AND is_active = 1`,
		rec.SubjectID, rec.Provider,
	); err != nil {
		return fmt.Errorf("deactivate prior tokens: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tokens (id, subject_id, provider, access_token, refresh_token, id_token, token_type, scope, issued_at, expires_at, is_active, is_revoked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SubjectID, rec.Provider, rec.AccessToken, rec.RefreshToken, rec.IDToken,
		rec.TokenType, rec.Scope, toMillis(rec.IssuedAt), toMillis(rec.ExpiresAt),
		boolToInt(rec.IsActive), boolToInt(rec.IsRevoked),
	); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}

	return tx.Commit()
}

// GetToken looks up a token record by id.
func (r *SQLiteRepository) GetToken(ctx context.Context, id string) (*model.TokenRecord, error) {
	row := r.db.QueryRowContext(ctx, selectToken+` WHERE id = ?`, id)
	return scanToken(row)
}

// GetActiveToken returns the active record for a (subject, provider) pair.
func (r *SQLiteRepository) GetActiveToken(ctx context.Context, subjectID, provider string) (*model.TokenRecord, error) {
	row := r.db.QueryRowContext(ctx, selectToken+` WHERE subject_id = ? AND provider = ? AND is_active = 1`, subjectID, provider)
	return scanToken(row)
}

// GetTokenByRefresh looks up a record by its refresh token value.
func (r *SQLiteRepository) GetTokenByRefresh(ctx context.Context, refreshToken string) (*model.TokenRecord, error) {
	if refreshToken == "" {
		return nil, ErrTokenNotFound
	}
	row := r.db.QueryRowContext(ctx, selectToken+` WHERE refresh_token = ?`, refreshToken)
	return scanToken(row)
}

// UpdateToken persists changed token fields in place.
func (r *SQLiteRepository) UpdateToken(ctx context.Context, rec *model.TokenRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tokens SET access_token = ?, refresh_token = ?, id_token = ?, token_type = ?, scope = ?, expires_at = ?, is_active = ?, is_revoked = ?
		WHERE id = ?`,
		rec.AccessToken, rec.RefreshToken, rec.IDToken, rec.TokenType, rec.Scope,
		toMillis(rec.ExpiresAt), boolToInt(rec.IsActive), boolToInt(rec.IsRevoked), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// DeactivateTokens deactivates all active records for a pair.
func (r *SQLiteRepository) DeactivateTokens(ctx context.Context, subjectID, provider string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tokens SET is_active = 0
		WHERE subject_id = ? AND provider = ? AND is_active = 1`,
		subjectID, provider,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate tokens: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// RevokeToken marks a record revoked and inactive.
func (r *SQLiteRepository) RevokeToken(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tokens SET is_revoked = 1, is_active = 0 WHERE id = ? AND is_revoked = 0`, id,
	)
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeactivateExpired deactivates all active records past their expiry.
func (r *SQLiteRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tokens SET is_active = 0 WHERE is_active = 1 AND expires_at < ?`,
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const selectToken = `
	SELECT id, subject_id, provider, access_token, refresh_token, id_token, token_type, scope, issued_at, expires_at, is_active, is_revoked
	FROM tokens`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var verified int
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.Provider, &u.ProviderUserID, &u.Email, &verified,
		&u.Name, &u.Picture, &u.Locale, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.EmailVerified = verified != 0
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func scanToken(row rowScanner) (*model.TokenRecord, error) {
	var t model.TokenRecord
	var issuedAt, expiresAt int64
	var active, revoked int
	err := row.Scan(&t.ID, &t.SubjectID, &t.Provider, &t.AccessToken, &t.RefreshToken,
		&t.IDToken, &t.TokenType, &t.Scope, &issuedAt, &expiresAt, &active, &revoked)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan token: %w", err)
	}
	t.IssuedAt = fromMillis(issuedAt)
	t.ExpiresAt = fromMillis(expiresAt)
	t.IsActive = active != 0
	t.IsRevoked = revoked != 0
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
