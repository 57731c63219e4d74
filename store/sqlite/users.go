package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// USERS
// =============================================================================

const userColumns = `id, username, full_name, password_hash, role, department, is_active, created_at, updated_at`

// CreateUser inserts a user and fills in its ID.
func (s *Store) CreateUser(ctx context.Context, u *budget.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowStamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, full_name, password_hash, role, department, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.FullName, u.PasswordHash, u.Role, u.Department, u.IsActive, now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("username %q: %w", u.Username, budget.ErrConflict)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	u.ID, _ = res.LastInsertId()
	u.CreatedAt = parseTime(now)
	u.UpdatedAt = u.CreatedAt
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*budget.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by login name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*budget.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]budget.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []budget.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser updates mutable user fields (not the password hash).
func (s *Store) UpdateUser(ctx context.Context, u *budget.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET full_name = ?, role = ?, department = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		u.FullName, u.Role, u.Department, u.IsActive, nowStamp(), u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res, "user")
}

// SetUserPassword replaces a user's password hash.
func (s *Store) SetUserPassword(ctx context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, nowStamp(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return requireRow(res, "user")
}

// CountUsers is used by the seeder to decide whether to bootstrap.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*budget.User, error) {
	var (
		u                    budget.User
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash,
		&u.Role, &u.Department, &u.IsActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

func scanUserRow(rows *sql.Rows) (budget.User, error) {
	u, err := scanUser(rows)
	if err != nil {
		return budget.User{}, err
	}
	return *u, nil
}

// requireRow converts a zero-row update/delete into ErrNotFound.
func requireRow(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, budget.ErrNotFound)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && contains(err.Error(), "UNIQUE constraint failed")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
