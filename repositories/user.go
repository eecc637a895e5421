//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"

	"pairchat/domain"
	"pairchat/errors"

	"github.com/mattn/go-sqlite3"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error)
}

type UserRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewUserRepository(db *sql.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) (domain.User, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash)
	if err != nil {
		var sqliteErr sqlite3.Error
		if stderrors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return domain.User{}, errors.ErrUserAlreadyExists
		}
		return domain.User{}, storageError("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, storageError("user id", err)
	}
	return r.GetUserByID(ctx, domain.UserID(id))
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getUser(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	return r.getUser(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id)
}

func (r *UserRepository) getUser(ctx context.Context, query string, arg any) (domain.User, error) {
	var user domain.User
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, storageError("select user", err)
	}
	return user, nil
}
