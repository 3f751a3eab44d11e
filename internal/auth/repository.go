package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/podilnyk/monojar/internal/models/admin"
	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/pkg/logger"
)

type Repository interface {
	GetAdminByID(ctx context.Context, adminID int) (*admin.Admin, error)
	GetAdminByName(ctx context.Context, name string) (*admin.Admin, error)
	CreateAdmin(ctx context.Context, name, password string) (id int, err error)
	GrantCapability(ctx context.Context, adminID int, c admin.Capability) error
	RevokeCapability(ctx context.Context, adminID int, c admin.Capability) error
	HasCapability(ctx context.Context, adminID int, c admin.Capability) (bool, error)
}

type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

func (r *Repo) GetAdminByID(ctx context.Context, adminID int) (*admin.Admin, error) {
	const query = "SELECT id, name, password, created_at, updated_at FROM admins WHERE id = $1"

	a := new(admin.Admin)

	err := r.db.QueryRowContext(ctx, query, adminID).Scan(
		&a.ID,
		&a.Name,
		&a.Password,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return a, nil
}

func (r *Repo) GetAdminByName(ctx context.Context, name string) (*admin.Admin, error) {
	const query = "SELECT id, name, password, created_at, updated_at FROM admins WHERE name = $1"

	a := new(admin.Admin)

	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&a.ID,
		&a.Name,
		&a.Password,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return a, nil
}

func (r *Repo) CreateAdmin(ctx context.Context, name, password string) (int, error) {
	const query = "INSERT INTO admins (name, password) VALUES ($1, $2) RETURNING id"

	var id int

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, name, password).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return -1, errs.ErrDataConflict
			}
		}
		return -1, fmt.Errorf("create admin: %w", err)
	}

	return id, nil
}

func (r *Repo) GrantCapability(ctx context.Context, adminID int, c admin.Capability) error {
	const query = `
		INSERT INTO admin_capabilities (admin_id, capability)
		VALUES ($1, $2)
		ON CONFLICT (admin_id, capability) DO NOTHING;
	`

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, adminID, c)
	if err != nil {
		return err
	}

	return nil
}

func (r *Repo) RevokeCapability(ctx context.Context, adminID int, c admin.Capability) error {
	const query = "DELETE FROM admin_capabilities WHERE admin_id = $1 AND capability = $2"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, adminID, c)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (r *Repo) HasCapability(ctx context.Context, adminID int, c admin.Capability) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM admin_capabilities
			WHERE admin_id = $1 AND capability = $2
		);
	`

	var has bool

	err := r.db.QueryRowContext(ctx, query, adminID, c).Scan(&has)
	if err != nil {
		return false, err
	}

	return has, nil
}
