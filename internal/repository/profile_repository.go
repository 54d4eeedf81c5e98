package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ProfileRepository is the account directory.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	Update(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	// GetByLogin matches the identifier against email or nickname, case-insensitively.
	GetByLogin(ctx context.Context, identifier string) (*domain.Profile, error)
	SetRoles(ctx context.Context, id string, isSupport, isAdmin bool) (*domain.Profile, error)
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

const profileColumns = `id, email, nickname, full_name, phone, avatar_url, password_hash, is_support, is_admin, created_at, updated_at`

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO profiles (email, nickname, full_name, phone, password_hash)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		profile.Email,
		profile.Nickname,
		profile.FullName,
		profile.Phone,
		profile.PasswordHash,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	const query = `
        UPDATE profiles SET nickname=$1, full_name=$2, phone=$3, avatar_url=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		profile.Nickname,
		profile.FullName,
		profile.Phone,
		profile.AvatarURL,
		profile.ID,
	).Scan(&profile.UpdatedAt)
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	return scanProfile(r.pool.QueryRow(ctx, query, id))
}

func (r *profileRepository) GetByLogin(ctx context.Context, identifier string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
        WHERE lower(email)=lower($1) OR lower(nickname)=lower($1)
        ORDER BY (lower(email)=lower($1)) DESC
        LIMIT 1`
	return scanProfile(r.pool.QueryRow(ctx, query, identifier))
}

func (r *profileRepository) SetRoles(ctx context.Context, id string, isSupport, isAdmin bool) (*domain.Profile, error) {
	query := `UPDATE profiles SET is_support=$1, is_admin=$2, updated_at=NOW() WHERE id=$3 RETURNING ` + profileColumns
	return scanProfile(r.pool.QueryRow(ctx, query, isSupport, isAdmin, id))
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Nickname,
		&p.FullName,
		&p.Phone,
		&p.AvatarURL,
		&p.PasswordHash,
		&p.IsSupport,
		&p.IsAdmin,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
