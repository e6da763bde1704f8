package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"greencity/internal/model"

	"github.com/lib/pq"
)

const (
	userColumns = `uid, email, full_name, password_hash, role, reports_count, votes_count,
		profile, preferences, created_at, updated_at`

	uniqueViolation = "23505"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	profile, prefs, err := encodeUserDocs(user)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		user.UID,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.Role,
		user.ReportsCount,
		user.VotesCount,
		profile,
		prefs,
		user.CreatedAt,
		user.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return model.Conflict("User already exists")
	}
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, uid string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("User not found")
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) RecordReport(ctx context.Context, identity model.Identity) error {
	name := identity.Name
	if name == "" {
		name = identity.Email
	}
	profile, prefs, err := encodeUserDocs(&model.User{Preferences: model.DefaultPreferences()})
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (uid, email, full_name, role, reports_count, votes_count, profile, preferences, created_at, updated_at)
		VALUES ($1, $2, $3, 'citizen', 1, 0, $4, $5, NOW(), NOW())
		ON CONFLICT (uid) DO UPDATE
		SET reports_count = users.reports_count + 1, updated_at = NOW()
	`
	_, err = r.db.ExecContext(ctx, query, identity.UID, identity.Email, name, profile, prefs)
	return err
}

func (r *UserRepository) IncrementVotesCount(ctx context.Context, uid string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET votes_count = votes_count + 1, updated_at = NOW() WHERE uid = $1`, uid)
	return err
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	profile, prefs, err := encodeUserDocs(user)
	if err != nil {
		return err
	}
	query := `
		UPDATE users SET full_name = $1, profile = $2, preferences = $3, updated_at = $4
		WHERE uid = $5
	`
	result, err := r.db.ExecContext(ctx, query, user.FullName, profile, prefs, user.UpdatedAt, user.UID)
	if err != nil {
		return err
	}
	return expectRow(result, "User not found")
}

func (r *UserRepository) UpdateRole(ctx context.Context, uid string, role model.Role) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $1, updated_at = NOW() WHERE uid = $2`, role, uid)
	if err != nil {
		return err
	}
	return expectRow(result, "User not found")
}

func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) ([]model.User, int, error) {
	var conds []string
	var args []interface{}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conds = append(conds, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, model.Offset(filter.Page, filter.Limit))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

func (r *UserRepository) Delete(ctx context.Context, uid string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, uid)
	if err != nil {
		return err
	}
	return expectRow(result, "User not found")
}

func encodeUserDocs(user *model.User) ([]byte, []byte, error) {
	profile, err := json.Marshal(user.Profile)
	if err != nil {
		return nil, nil, err
	}
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return nil, nil, err
	}
	return profile, prefs, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var profile, prefs []byte
	err := row.Scan(
		&user.UID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.Role,
		&user.ReportsCount,
		&user.VotesCount,
		&profile,
		&prefs,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &user.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &user.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return user, nil
}
