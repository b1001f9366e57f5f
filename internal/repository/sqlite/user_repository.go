package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"energytrack/internal/domain"
	"energytrack/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'USER',
	status TEXT NOT NULL DEFAULT 'ENABLED',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const userColumns = `id, username, password_hash, email, phone, role, status, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return ensureColumns(ctx, r.db, "users", [][2]string{
		{"email", `ALTER TABLE users ADD COLUMN email TEXT NOT NULL DEFAULT ''`},
		{"phone", `ALTER TABLE users ADD COLUMN phone TEXT NOT NULL DEFAULT ''`},
		{"role", `ALTER TABLE users ADD COLUMN role TEXT NOT NULL DEFAULT 'USER'`},
		{"status", `ALTER TABLE users ADD COLUMN status TEXT NOT NULL DEFAULT 'ENABLED'`},
	})
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, password_hash, email, phone, role, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.Phone,
		user.Role,
		user.Status,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("user %q: %w", user.Username, repository.ErrConflict)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

// Update rewrites the profile columns. The password hash is left untouched.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET username=?, email=?, phone=?, role=?, status=?, updated_at=?
WHERE id=?`,
		user.Username,
		user.Email,
		user.Phone,
		user.Role,
		user.Status,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", user.Username, repository.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return affectedOne(res, "update user")
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET password_hash=?, updated_at=? WHERE id=?`,
		passwordHash,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return affectedOne(res, "update password")
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return affectedOne(res, "delete user")
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	page = page.Normalize()
	total, err := count(ctx, r.db, `SELECT COUNT(*) FROM users`)
	if err != nil {
		return nil, 0, err
	}
	users, err := r.query(ctx, `
SELECT `+userColumns+`
FROM users
ORDER BY id ASC
LIMIT ? OFFSET ?`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// SearchByUsername matches a substring of the username. An empty needle lists
// everything.
func (r *UserRepository) SearchByUsername(ctx context.Context, username string, page domain.PageRequest) ([]domain.User, int64, error) {
	page = page.Normalize()
	pattern := "%" + username + "%"
	total, err := count(ctx, r.db, `SELECT COUNT(*) FROM users WHERE username LIKE ?`, pattern)
	if err != nil {
		return nil, 0, err
	}
	users, err := r.query(ctx, `
SELECT `+userColumns+`
FROM users
WHERE username LIKE ?
ORDER BY id ASC
LIMIT ? OFFSET ?`, pattern, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) query(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row scanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.Phone,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.Local()
	user.UpdatedAt = user.UpdatedAt.Local()
	return &user, nil
}
