package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

const userColumns = `id, email, username, password_hash, provider_id, name, role, email_verified, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	err := s.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.ProviderID,
		&u.Name,
		&u.Role,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func insertUser(ctx context.Context, q queryRower, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	now := time.Now()
	err := q.QueryRowContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING created_at, updated_at
	`,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.ProviderID,
		user.Name,
		user.Role,
		user.EmailVerified,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return classify("create user", err)
	}
	return nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return insertUser(ctx, r.db, user)
}

// CreateWithProfile creates a user and their default learning profile in
// one transaction.
func (r *UserRepository) CreateWithProfile(ctx context.Context, user *models.User) (*models.LearningProfile, error) {
	var profile *models.LearningProfile
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		profile = models.NewLearningProfile(user.ID)
		return upsertProfile(ctx, tx, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *UserRepository) getBy(ctx context.Context, column string, value any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value))
	if err != nil {
		return nil, classify("get user by "+column, err)
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username)
}

// GetByProviderID retrieves a user by the SSO subject
func (r *UserRepository) GetByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	return r.getBy(ctx, "provider_id", providerID)
}

// Update updates an existing user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET email = $2, username = $3, password_hash = $4, provider_id = $5, name = $6,
		    role = $7, email_verified = $8, updated_at = $9
		WHERE id = $1
		RETURNING updated_at
	`,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.ProviderID,
		user.Name,
		user.Role,
		user.EmailVerified,
		time.Now(),
	).Scan(&user.UpdatedAt)
	if err != nil {
		return classify("update user", err)
	}
	return nil
}

// Delete deletes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %w", ErrNotFound)
	}
	return nil
}
