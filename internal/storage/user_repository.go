package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"key_gateway/internal/models"
)

// UserRepository handles credential record database operations. When
// an Encryption service is attached, the provider secret is stored
// encrypted and transparently decrypted on read.
type UserRepository struct {
	db  *DB
	enc *Encryption
}

// NewUserRepository creates a new user repository. enc may be nil, in
// which case provider secrets are stored as-is.
func NewUserRepository(db *DB, enc *Encryption) *UserRepository {
	return &UserRepository{db: db, enc: enc}
}

const userColumns = `user_id, user_name, email, key, hash, total_limit, remaining_limit, usage_limit, created_at, updated_at`

// GetByID retrieves a credential record by user id
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	query := fmt.Sprintf("SELECT %s FROM users WHERE user_id = $1", userColumns)

	err := r.db.conn.GetContext(ctx, &user, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := r.decryptKey(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

// Create inserts a new credential record. CreatedAt and UpdatedAt are
// filled in from the database.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	storedKey, err := r.encryptKey(user.Key)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (user_id, user_name, email, key, hash,
		                   total_limit, remaining_limit, usage_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err = r.db.conn.QueryRowxContext(
		ctx, query,
		user.UserID, user.UserName, user.Email, storedKey, user.Hash,
		user.TotalLimit, user.RemainingLimit, user.UsageLimit,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UserUpdate describes a partial update to a credential record. Nil
// fields are left untouched.
type UserUpdate struct {
	Key            *string
	Hash           *string
	RemainingLimit *float64
	UsageLimit     *float64
}

// Update applies a partial update to a credential record. updated_at
// is always refreshed.
func (r *UserRepository) Update(ctx context.Context, userID string, upd UserUpdate) error {
	setClauses := []string{"updated_at = NOW()"}
	var args []interface{}
	argCount := 1

	if upd.Key != nil {
		storedKey, err := r.encryptKey(*upd.Key)
		if err != nil {
			return err
		}
		setClauses = append(setClauses, fmt.Sprintf("key = $%d", argCount))
		args = append(args, storedKey)
		argCount++
	}
	if upd.Hash != nil {
		setClauses = append(setClauses, fmt.Sprintf("hash = $%d", argCount))
		args = append(args, *upd.Hash)
		argCount++
	}
	if upd.RemainingLimit != nil {
		setClauses = append(setClauses, fmt.Sprintf("remaining_limit = $%d", argCount))
		args = append(args, *upd.RemainingLimit)
		argCount++
	}
	if upd.UsageLimit != nil {
		setClauses = append(setClauses, fmt.Sprintf("usage_limit = $%d", argCount))
		args = append(args, *upd.UsageLimit)
		argCount++
	}

	setClause := setClauses[0]
	for i := 1; i < len(setClauses); i++ {
		setClause += ", " + setClauses[i]
	}

	query := fmt.Sprintf("UPDATE users SET %s WHERE user_id = $%d", setClause, argCount)
	args = append(args, userID)

	result, err := r.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Delete removes a credential record
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.db.conn.ExecContext(ctx, "DELETE FROM users WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// List returns the most recently created credential records, for the
// admin surface.
func (r *UserRepository) List(ctx context.Context, limit int) ([]*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users ORDER BY created_at DESC LIMIT $1", userColumns)

	var users []*models.User
	if err := r.db.conn.SelectContext(ctx, &users, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	for _, user := range users {
		if err := r.decryptKey(user); err != nil {
			return nil, err
		}
	}

	return users, nil
}

func (r *UserRepository) encryptKey(key string) (string, error) {
	if r.enc == nil {
		return key, nil
	}
	stored, err := r.enc.EncryptString(key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt provider key: %w", err)
	}
	return stored, nil
}

func (r *UserRepository) decryptKey(user *models.User) error {
	if r.enc == nil {
		return nil
	}
	plaintext, err := r.enc.DecryptString(user.Key)
	if err != nil {
		return fmt.Errorf("failed to decrypt provider key: %w", err)
	}
	user.Key = plaintext
	return nil
}
