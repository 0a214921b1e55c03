package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const userTable = `"user"`

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func userValues(usr user.User) map[string]interface{} {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return map[string]interface{}{
		"id":            usr.ID,
		"name":          usr.Name,
		"username":      null.NewString(usr.Username, usr.Username != ""),
		"email":         null.NewString(usr.Email, usr.Email != ""),
		"is_active":     usr.IsActive,
		"roles":         pq.StringArray(roles),
		"password_hash": null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		"created_at":    usr.CreatedAt.UTC(),
		"updated_at":    usr.UpdatedAt.UTC(),
		"last_login":    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{baseRepository{exec: exec}}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	var excl sq.And
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		excl = append(excl, sq.NotEq{"id": ids})
	}

	if username != "" {
		found, err := exists(ctx, exe, userTable, append(sq.And{sq.Eq{"username": username}}, excl...))
		if err != nil {
			return errors.Wrap(err, "checking username uniqueness")
		}
		if found {
			return user.ErrUsernameExists
		}
	}
	if email != "" {
		found, err := exists(ctx, exe, userTable, append(sq.And{sq.Eq{"email": email}}, excl...))
		if err != nil {
			return errors.Wrap(err, "checking email uniqueness")
		}
		if found {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if err := insert(ctx, repo.getExec(exec), userTable, userValues(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]user.User, int, error) {
	var where sq.And

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			where = append(where, ilike(filter.Search, "name", "username", "email"))
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roles := make(sq.Or, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roles = append(roles, sq.Expr("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ?)", role+"%"))
			}
			where = append(where, roles)
		}
		if filter.IsActive != nil {
			where = append(where, sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}

	var rows []userRow
	total, err := queryPage(ctx, repo.getExec(exec), &rows, userTable, where, orderBy(ordering, "created_at ASC", "id ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, total, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var where sq.Sqlizer

	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		where = sq.Eq{"id": filter.ID}
	case filter.Username != "":
		where = sq.Eq{"username": filter.Username}
	case filter.Email != "":
		where = sq.Eq{"email": filter.Email}
	case filter.UsernameOrEmail != "":
		where = sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getOne(ctx, repo.getExec(exec), &row, userTable, where); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	values := userValues(usr)
	delete(values, "id")
	delete(values, "created_at")
	if err := update(ctx, repo.getExec(exec), userTable, usr.ID, values, user.ErrNotFound); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "updating user")
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	query, args, err := psql.Delete(userTable).Where(sq.Eq{"id": valid}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
