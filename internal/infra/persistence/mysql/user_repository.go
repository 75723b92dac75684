package mysql

import (
	"context"
	"database/sql"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	dom "example.com/storefront/internal/domain/user"
)

const errDuplicateEntry = 1062

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func isDuplicate(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

func (r *UserRepository) Create(ctx context.Context, u *dom.User) (*dom.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, phone, password_hash, role_code)
         VALUES (?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.Phone, u.PasswordHash, string(u.RoleCode),
	)
	if err != nil {
		if isDuplicate(err) {
			return nil, dom.ErrEmailAlreadyUsed
		}
		return nil, errors.Wrap(err, "insert user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "user id")
	}
	u.ID = id
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*dom.User, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*dom.User, error) {
	return r.getOne(ctx, `WHERE email = ?`, email)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*dom.User, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, name, email, phone, password_hash, role_code
        FROM users `+where, arg)

	var (
		u        dom.User
		roleCode string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &roleCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dom.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "select user")
	}
	code, err := dom.ParseRoleCode(roleCode)
	if err != nil {
		return nil, errors.Wrapf(err, "user %d", u.ID)
	}
	u.RoleCode = code
	return &u, nil
}
