package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"motor_gateway/internal/models"
)

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = errors.New("username already taken")

const (
	insertUserSQL           = `INSERT INTO users (username, password_hash) VALUES (?, ?)`
	selectUserByUsernameSQL = `SELECT id, username, password_hash FROM users WHERE username = ?`
)

// OperatorRepo stores the dashboard operators allowed to sign in.
type OperatorRepo struct {
	db *sql.DB
}

func NewOperatorRepo(db *sql.DB) *OperatorRepo {
	return &OperatorRepo{db: db}
}

var _ Authorization = (*OperatorRepo)(nil)

func (r *OperatorRepo) Create(ctx context.Context, username, passwordHash string) (int, error) {
	res, err := r.db.ExecContext(ctx, insertUserSQL, username, passwordHash)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
	}
	if err != nil {
		return 0, fmt.Errorf("insert operator %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("operator %q id: %w", username, err)
	}
	return int(id), nil
}

// GetByUsername returns (nil, nil) for an unknown username.
func (r *OperatorRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u := new(models.User)
	row := r.db.QueryRowContext(ctx, selectUserByUsernameSQL, username)
	switch err := row.Scan(&u.ID, &u.Username, &u.PasswordHash); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("select operator %q: %w", username, err)
	}
	return u, nil
}

// modernc reports constraint failures only through the message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
