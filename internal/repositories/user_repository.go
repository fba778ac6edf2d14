package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/apperrors"
	"realtime-service/internal/models"
)

// UserRepository abstracts the durable user rows the core denormalizes
// presence into.
type UserRepository interface {
	EnsureUser(ctx context.Context, id int64, email string) error
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUsers(ctx context.Context, ids []int64) ([]models.User, error)
	SetOnline(ctx context.Context, id int64, online bool) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// EnsureUser upserts the user row from the authenticated identity.
func (r *UserRepo) EnsureUser(ctx context.Context, id int64, email string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, email) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`, id, email)
	return err
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, email, is_online, last_seen, created_at FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperrors.ErrUnknownUser
	}
	return user, err
}

// GetUsers fetches the user rows for the given ids. Unknown ids are skipped.
func (r *UserRepo) GetUsers(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, email, is_online, last_seen, created_at FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var users []models.User
	err = r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...)
	return users, err
}

// SetOnline updates the denormalized presence flag and stamps last_seen.
func (r *UserRepo) SetOnline(ctx context.Context, id int64, online bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=$2, last_seen=NOW() WHERE id=$1`, id, online)
	return err
}
