package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string        `db:"id"`
	Name         string        `db:"name"`
	Email        string        `db:"email"`
	Role         string        `db:"role"`
	OJTStart     null.Time     `db:"ojt_start"`
	WorkSchedule pq.Int64Array `db:"work_schedule"`
	IsActive     bool          `db:"is_active"`
	PasswordHash []byte        `db:"password_hash"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
	LastLogin    null.Time     `db:"last_login"`
}

func (row userRow) toUser() user.User {
	schedule := make([]int, 0, len(row.WorkSchedule))
	for _, day := range row.WorkSchedule {
		schedule = append(schedule, int(day))
	}
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Role:         row.Role,
		OJTStart:     row.OJTStart,
		WorkSchedule: schedule,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin.Time,
	}
	usr.SetActive(row.IsActive)
	return usr
}

func toUserRow(usr user.User) userRow {
	schedule := make(pq.Int64Array, 0, len(usr.WorkSchedule))
	for _, day := range usr.WorkSchedule {
		schedule = append(schedule, int64(day))
	}
	row := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
		OJTStart:     usr.OJTStart,
		WorkSchedule: schedule,
		IsActive:     usr.IsActive == nil || *usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin = null.TimeFrom(usr.LastLogin)
	}
	return row
}

const userColumns = `id, name, email, role, ojt_start, work_schedule, is_active, password_hash, created_at, updated_at, last_login`

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := `SELECT COUNT(*) FROM "user" WHERE email = ?`
	args := []interface{}{email}

	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		var err error
		if q, args, err = sqlx.In(q+` AND id NOT IN (?)`, email, ids); err != nil {
			return errors.Wrap(err, "binding excluded ids")
		}
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	row := toUserRow(usr)

	q := `INSERT INTO "user" (` + userColumns + `)
		VALUES (:id, :name, :email, :role, :ojt_start, :work_schedule, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := `SELECT ` + userColumns + ` FROM "user" WHERE `
	var arg interface{}
	switch {
	case filter.ID != "":
		q += `id = $1`
		arg = filter.ID
	case filter.Email != "":
		q += `email = $1`
		arg = filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := `SELECT ` + userColumns + ` FROM "user"`
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil && !filter.IsEmpty() {
		if filter.Search != "" {
			conds = append(conds, `(name ILIKE ? OR email ILIKE ?)`)
			pattern := "%" + filter.Search + "%"
			args = append(args, pattern, pattern)
		}
		if filter.Role != "" {
			conds = append(conds, `role = ?`)
			args = append(args, filter.Role)
		}
		if filter.IsActive != nil {
			conds = append(conds, `is_active = ?`)
			args = append(args, *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, `created_at >= ?`)
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, `created_at <= ?`)
			args = append(args, filter.CreatedTo.UTC())
		}
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, userOrderFields, "name ASC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)

	q := `UPDATE "user" SET name = :name, email = :email, role = :role, ojt_start = :ojt_start,
		work_schedule = :work_schedule, is_active = :is_active, password_hash = :password_hash,
		updated_at = :updated_at, last_login = :last_login WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	row := toUserRow(usr)

	q := `INSERT INTO "user" (` + userColumns + `)
		VALUES (:id, :name, :email, :role, :ojt_start, :work_schedule, :is_active, :password_hash, :created_at, :updated_at, :last_login)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role,
		ojt_start = EXCLUDED.ojt_start, work_schedule = EXCLUDED.work_schedule, is_active = EXCLUDED.is_active,
		password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at, last_login = EXCLUDED.last_login`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "upserting user")
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "binding ids")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

var userOrderFields = map[string]bool{
	"name":       true,
	"email":      true,
	"role":       true,
	"created_at": true,
	"updated_at": true,
	"last_login": true,
}

// orderBy renders an ORDER BY clause from orderings whose field passes the
// allowed-column check; anything else falls back to def.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, def string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return ` ORDER BY ` + def
	}
	return ` ORDER BY ` + strings.Join(clauses, ", ")
}
