package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts account persistence.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	CreateUser(ctx context.Context, username, email, role string) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, email, first_name, last_name, role, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// CreateUser registers an account. Registration flows live outside this
// service; this exists for membership bootstrap and tooling.
func (r *UserRepo) CreateUser(ctx context.Context, username, email, role string) (models.User, error) {
	if role == "" {
		role = models.RoleMember
	}
	var user models.User
	err := r.db.QueryRowxContext(ctx, `INSERT INTO users (username, email, role) VALUES ($1, $2, $3)
        RETURNING id, username, email, first_name, last_name, role, created_at`, username, email, role).
		StructScan(&user)
	return user, err
}
