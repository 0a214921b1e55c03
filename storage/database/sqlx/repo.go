package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows || err == notFound {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullID(id string) null.String {
	return null.NewString(id, id != "")
}

// likeEscaper makes wildcards in user input match literally; backslash is the default LIKE escape in Postgres.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func ilike(val string, cols ...string) sq.Or {
	pattern := "%" + likeEscaper.Replace(val) + "%"
	or := make(sq.Or, 0, len(cols))
	for _, col := range cols {
		or = append(or, sq.ILike{col: pattern})
	}
	return or
}

func orderBy(ordering []core.DBOrdering, fallback ...string) []string {
	if len(ordering) == 0 {
		return fallback
	}
	orderList := make([]string, 0, len(ordering)+len(fallback))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return append(orderList, fallback...)
}

func exists(ctx context.Context, exec core.DBExecutor, from string, where sq.Sqlizer) (bool, error) {
	query, args, err := psql.Select("1").From(from).Where(where).Limit(1).ToSql()
	if err != nil {
		return false, err
	}
	var found bool
	if err = sqlx.GetContext(ctx, exec, &found, "SELECT EXISTS("+query+")", args...); err != nil {
		return false, err
	}
	return found, nil
}

// queryPage selects the rows of a single page along with the number of rows matching where.
func queryPage(ctx context.Context, exec core.DBExecutor, dest interface{}, from string, where sq.And, orders []string, page *core.Pagination) (int, error) {
	countQ := psql.Select("COUNT(*)").From(from)
	rowsQ := psql.Select("*").From(from).OrderBy(orders...)
	if len(where) > 0 {
		countQ = countQ.Where(where)
		rowsQ = rowsQ.Where(where)
	}
	if page != nil {
		rowsQ = rowsQ.Limit(uint64(page.Limit())).Offset(uint64(page.Offset()))
	}

	query, args, err := countQ.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building count query")
	}
	var total int
	if err = sqlx.GetContext(ctx, exec, &total, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}

	query, args, err = rowsQ.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building select query")
	}
	if err = sqlx.SelectContext(ctx, exec, dest, query, args...); err != nil {
		return 0, errors.Wrap(err, "selecting rows")
	}
	return total, nil
}

func getOne(ctx context.Context, exec core.DBExecutor, dest interface{}, from string, where sq.Sqlizer) error {
	query, args, err := psql.Select("*").From(from).Where(where).Limit(1).ToSql()
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, exec, dest, query, args...)
}

func insert(ctx context.Context, exec core.DBExecutor, into string, values map[string]interface{}) error {
	query, args, err := psql.Insert(into).SetMap(values).ToSql()
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, query, args...)
	return err
}

// update fails with notFound when no row has the given id.
func update(ctx context.Context, exec core.DBExecutor, table, id string, values map[string]interface{}, notFound error) error {
	if !validID(id) {
		return notFound
	}
	return updateWhere(ctx, exec, table, sq.Eq{"id": id}, values, notFound)
}

// updateWhere returns noMatch when no row satisfies where.
func updateWhere(ctx context.Context, exec core.DBExecutor, table string, where sq.Sqlizer, values map[string]interface{}, noMatch error) error {
	query, args, err := psql.Update(table).SetMap(values).Where(where).ToSql()
	if err != nil {
		return err
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkAffected(res, noMatch)
}

func deleteByID(ctx context.Context, exec core.DBExecutor, from, id string, notFound error) error {
	if !validID(id) {
		return notFound
	}
	query, args, err := psql.Delete(from).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkAffected(res, notFound)
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
