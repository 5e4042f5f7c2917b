package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ahava-health/ahava-api/internal/data/pgxutil"
	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	apperrors "github.com/ahava-health/ahava-api/internal/errors"
)

// UserRepo stores accounts and their role profiles in Postgres.
// It implements ports.UserStore, ports.ProfileStore and ports.AccountStats.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: timeProviderOrReal(tp)}
}

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) toDomain() domainauth.User {
	return domainauth.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const userColumns = `id, email, name, password_hash, created_at, updated_at`

const insertUserSQL = `
	INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

const upsertProfileSQL = `
	INSERT INTO profiles (user_id, role, created_at, updated_at)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
`

func (r *UserRepo) prepareUser(u domainauth.User) (domainauth.User, error) {
	if u.ID == "" {
		return u, errors.New("user id is required")
	}
	if u.PasswordHash == "" {
		return u, errors.New("password hash is required")
	}
	now := r.timeProvider.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	u.Email = domainauth.NormalizeEmail(u.Email)
	return u, nil
}

// Create inserts a new user. A duplicate email maps to a conflict error.
func (r *UserRepo) Create(ctx context.Context, u domainauth.User) error {
	u, err := r.prepareUser(u)
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, insertUserSQL,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt, u.UpdatedAt); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// CreateAccount inserts the user and its profile in one transaction so a
// failed profile write never leaves a role-less account behind.
func (r *UserRepo) CreateAccount(ctx context.Context, u domainauth.User, role domainauth.Role) error {
	if !role.Valid() {
		return apperrors.ValidationField("role", "Unknown role: "+string(role))
	}
	u, err := r.prepareUser(u)
	if err != nil {
		return err
	}
	err = pgxutil.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertUserSQL,
			u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt, u.UpdatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, upsertProfileSQL, u.ID, string(role), u.CreatedAt)
		return err
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// FindByID returns the user with id.
func (r *UserRepo) FindByID(ctx context.Context, id string) (domainauth.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail looks a user up by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domainauth.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, domainauth.NormalizeEmail(email))
}

func (r *UserRepo) findOne(ctx context.Context, query string, arg string) (domainauth.User, error) {
	row, err := pgxutil.CollectOne[userRow](ctx, r.DB, query, arg)
	if err != nil {
		return domainauth.User{}, apperrors.MapDBError(err)
	}
	return row.toDomain(), nil
}

// UpdatePasswordHash replaces the stored credential hash for id.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if hash == "" {
		return errors.New("password hash is required")
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, hash, r.timeProvider.Now().UTC())
	if err != nil {
		return apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFoundf("user %s not found", id)
	}
	return nil
}

// Upsert sets the role for a user, creating the profile if needed.
func (r *UserRepo) Upsert(ctx context.Context, p domainauth.Profile) error {
	if !p.Role.Valid() {
		return apperrors.ValidationField("role", "Unknown role: "+string(p.Role))
	}
	_, err := r.DB.ExecContext(ctx, upsertProfileSQL, p.UserID, string(p.Role), r.timeProvider.Now().UTC())
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// FindRole returns the role recorded for userID.
func (r *UserRepo) FindRole(ctx context.Context, userID string) (domainauth.Role, error) {
	var role string
	err := r.DB.QueryRowContext(ctx, `SELECT role FROM profiles WHERE user_id = $1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NotFound("profile not found")
	}
	if err != nil {
		return "", apperrors.MapDBError(err)
	}
	return domainauth.Role(role), nil
}

// CountByRole returns the number of profiles per role.
func (r *UserRepo) CountByRole(ctx context.Context) (map[domainauth.Role]int64, error) {
	out := make(map[domainauth.Role]int64)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT role, count(*) FROM profiles GROUP BY role`)
		if err != nil {
			return err
		}
		var role string
		var n int64
		_, err = pgx.ForEachRow(rows, []any{&role, &n}, func() error {
			out[domainauth.Role(role)] = n
			return nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("count users by role: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
