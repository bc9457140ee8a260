package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

type admins struct {
	s *Store
}

func (a *admins) Create(ctx context.Context, admin *organization.Admin) (string, error) {
	id := uuid.NewString()
	createdAt := admin.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, password_hash, organization, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.s.table("admins"))

	if _, err := a.s.q.ExecContext(ctx, query, id, admin.Email, admin.PasswordHash, admin.Organization, createdAt); err != nil {
		return "", mapPostgresError(err)
	}
	return id, nil
}

func (a *admins) findBy(ctx context.Context, column, value string) (*organization.Admin, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, organization, created_at
		FROM %s WHERE %s = $1
	`, a.s.table("admins"), column)

	var admin organization.Admin
	err := a.s.q.QueryRowContext(ctx, query, value).Scan(
		&admin.ID,
		&admin.Email,
		&admin.PasswordHash,
		&admin.Organization,
		&admin.CreatedAt,
	)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return &admin, nil
}

func (a *admins) Get(ctx context.Context, id string) (*organization.Admin, error) {
	return a.findBy(ctx, "id", id)
}

func (a *admins) FindByEmail(ctx context.Context, email string) (*organization.Admin, error) {
	return a.findBy(ctx, "email", email)
}

func (a *admins) UpdateCredentials(ctx context.Context, id, email, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET email = $2, password_hash = $3 WHERE id = $1`, a.s.table("admins"))
	return execOne(ctx, a.s.q, query, id, email, passwordHash)
}

func (a *admins) SetOrganization(ctx context.Context, id, name string) error {
	query := fmt.Sprintf(`UPDATE %s SET organization = $2 WHERE id = $1`, a.s.table("admins"))
	return execOne(ctx, a.s.q, query, id, name)
}

func (a *admins) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, a.s.table("admins"))
	return execOne(ctx, a.s.q, query, id)
}
