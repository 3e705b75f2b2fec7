package store

import (
	"context"

	"pdv-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

// CreateUser inserts a user. Duplicate emails return a ConflictError.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	return wrap("create user", err)
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, s.db, "id", id)
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return getUser(ctx, s.db, "email", email)
}

// GetUser reads a user inside the transaction
func (t *Tx) GetUser(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, t.tx, "id", id)
}

func getUser(ctx context.Context, q queryer, column, value string) (*models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, q, &u, q.Rebind("SELECT "+userColumns+" FROM users WHERE "+column+" = ?"), value)
	if nf := notFound(err, "user", value); nf != nil {
		return nil, nf
	}
	if err != nil {
		return nil, wrap("get user", err)
	}
	return &u, nil
}
