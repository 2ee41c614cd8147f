package sqlite

import (
	"context"

	"github.com/okian/surgitrack/internal/domain/model"
)

const userColumns = `id, email, full_name, password_hash, created_at`

// CreateUser implements repository.Users.
func (s *Store) CreateUser(ctx context.Context, u model.User) (_ model.User, err error) {
	defer track("create_user")(&err)

	u.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, full_name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.Email, u.FullName, u.PasswordHash, formatTime(u.CreatedAt))
	if err != nil {
		return model.User{}, mapErr(err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// UserByEmail implements repository.Users.
func (s *Store) UserByEmail(ctx context.Context, email string) (_ model.User, err error) {
	defer track("user_by_email")(&err)
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// UserByID implements repository.Users.
func (s *Store) UserByID(ctx context.Context, id int64) (_ model.User, err error) {
	defer track("user_by_id")(&err)
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u       model.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &created); err != nil {
		return model.User{}, mapErr(err)
	}
	t, err := parseTime(created)
	if err != nil {
		return model.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}
