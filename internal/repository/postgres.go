package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"natours/api/internal/apperr"
	"natours/api/internal/query"
	"natours/api/internal/resource"
)

// pgTimeLayout is fixed width so stored timestamps order lexically.
const pgTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Postgres stores each record as a JSONB document in a two-column table
// (id text primary key, doc jsonb).
type Postgres struct {
	pool  *pgxpool.Pool
	desc  *resource.Descriptor
	table string
}

func NewPostgres(pool *pgxpool.Pool, desc *resource.Descriptor) *Postgres {
	return &Postgres{
		pool:  pool,
		desc:  desc,
		table: pgx.Identifier{desc.Name}.Sanitize(),
	}
}

// EnsureSchema creates the table and one unique expression index per
// unique field.
func (r *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id text PRIMARY KEY, doc jsonb NOT NULL)`, r.table),
	}
	for _, field := range r.desc.UniqueFields() {
		index := pgx.Identifier{r.desc.Name + "_" + field + "_key"}.Sanitize()
		stmts = append(stmts, fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((doc->>'%s'))`,
			index, r.table, strings.ReplaceAll(field, "'", "''"),
		))
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema %s: %w", r.desc.Name, err)
		}
	}
	return nil
}

func (r *Postgres) Find(ctx context.Context, q FindQuery) ([]resource.Record, error) {
	b := &sqlBuilder{}
	where, err := b.where(q.Filter)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT id, doc FROM %s WHERE %s ORDER BY %s`, r.table, where, b.orderBy(q.Sort))
	if q.Skip > 0 {
		sql += " OFFSET " + b.arg(q.Skip)
	}
	if q.Limit > 0 {
		sql += " LIMIT " + b.arg(q.Limit)
	}

	rows, err := r.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, r.mapError("find", err)
	}
	recs, err := pgx.CollectRows(rows, r.scan)
	if err != nil {
		return nil, r.mapError("find", err)
	}
	for i := range recs {
		recs[i] = project(recs[i], q.Projection)
	}
	return recs, nil
}

func (r *Postgres) Count(ctx context.Context, f query.Filter) (int64, error) {
	b := &sqlBuilder{}
	where, err := b.where(f)
	if err != nil {
		return 0, err
	}
	var n int64
	sql := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, r.table, where)
	if err := r.pool.QueryRow(ctx, sql, b.args...).Scan(&n); err != nil {
		return 0, r.mapError("count", err)
	}
	return n, nil
}

func (r *Postgres) FindByID(ctx context.Context, id string, p query.Projection) (resource.Record, error) {
	sql := fmt.Sprintf(`SELECT id, doc FROM %s WHERE id = $1`, r.table)
	rows, err := r.pool.Query(ctx, sql, id)
	if err != nil {
		return nil, r.mapError("find by id", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, r.scan)
	if err != nil {
		return nil, r.mapError("find by id", err)
	}
	return project(rec, p), nil
}

func (r *Postgres) Create(ctx context.Context, rec resource.Record) (resource.Record, error) {
	id := rec.ID()
	if id == "" {
		return nil, apperr.Validation(resource.IDField, "is required")
	}
	doc, err := encodeDoc(rec)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb) RETURNING id, doc`, r.table)
	return r.one(ctx, "create", sql, id, doc)
}

func (r *Postgres) UpdateByID(ctx context.Context, id string, changes resource.Record) (resource.Record, error) {
	set, unset := splitChanges(changes)
	doc, err := encodeDoc(set)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`UPDATE %s SET doc = (doc || $2::jsonb) - $3::text[] WHERE id = $1 RETURNING id, doc`, r.table)
	return r.one(ctx, "update", sql, id, doc, nonNil(unset))
}

func (r *Postgres) DeleteByID(ctx context.Context, id string) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	tag, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return r.mapError("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *Postgres) FindOneAndUpdate(ctx context.Context, f query.Filter, changes resource.Record) (resource.Record, error) {
	set, unset := splitChanges(changes)
	doc, err := encodeDoc(set)
	if err != nil {
		return nil, err
	}
	b := &sqlBuilder{args: []any{doc, nonNil(unset)}}
	where, err := b.where(f)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`UPDATE %[1]s SET doc = (doc || $1::jsonb) - $2::text[]
		WHERE id = (SELECT id FROM %[1]s WHERE %[2]s ORDER BY id LIMIT 1 FOR UPDATE)
		RETURNING id, doc`, r.table, where)
	return r.one(ctx, "find one and update", sql, b.args...)
}

func (r *Postgres) one(ctx context.Context, op, sql string, args ...any) (resource.Record, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, r.mapError(op, err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, r.scan)
	if err != nil {
		return nil, r.mapError(op, err)
	}
	return rec, nil
}

func (r *Postgres) scan(row pgx.CollectableRow) (resource.Record, error) {
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		return nil, err
	}
	rec := resource.Record{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", r.desc.Name, err)
	}
	rec[resource.IDField] = id
	return r.desc.Restore(rec), nil
}

func (r *Postgres) mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	var connErr *pgconn.ConnectError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return fmt.Errorf("%s %s: %w", op, r.desc.Name, apperr.ErrConflict)
	case errors.Is(err, context.DeadlineExceeded), pgconn.Timeout(err), errors.As(err, &connErr):
		return apperr.Unavailable(op+" "+r.desc.Name, err)
	}
	return fmt.Errorf("%s %s: %w", op, r.desc.Name, err)
}

// sqlBuilder accumulates positional arguments. Field names are always
// passed as arguments, never spliced into the statement.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) where(f query.Filter) (string, error) {
	if len(f) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(f))
	for _, c := range f {
		part, err := b.condition(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " AND "), nil
}

var sqlOperators = map[query.Operator]string{
	query.Gt:  ">",
	query.Gte: ">=",
	query.Lt:  "<",
	query.Lte: "<=",
}

func (b *sqlBuilder) condition(c query.Condition) (string, error) {
	if !c.Op.Valid() {
		return "", fmt.Errorf("unsupported operator %q", c.Op)
	}
	if c.Field == resource.IDField {
		return b.idCondition(c), nil
	}
	key := b.arg(c.Field)
	path := "doc->" + key + "::text"

	switch c.Op {
	case query.Eq:
		operands, isList := c.Value.([]any)
		if !isList {
			operands = []any{c.Value}
		}
		alts := make([]string, 0, len(operands))
		for _, operand := range operands {
			v, err := b.jsonArg(operand)
			if err != nil {
				return "", err
			}
			alts = append(alts, fmt.Sprintf("%[1]s = %[2]s OR %[1]s @> jsonb_build_array(%[2]s)", path, v))
		}
		return "(" + strings.Join(alts, " OR ") + ")", nil
	case query.Ne:
		v, err := b.jsonArg(c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s IS DISTINCT FROM %s", path, v), nil
	default:
		v, err := b.jsonArg(c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"(%[1]s IS NOT NULL AND EXISTS (SELECT 1 FROM jsonb_array_elements("+
				"CASE jsonb_typeof(%[1]s) WHEN 'array' THEN %[1]s ELSE jsonb_build_array(%[1]s) END) e "+
				"WHERE jsonb_typeof(e) = jsonb_typeof(%[2]s) AND e %[3]s %[2]s))",
			path, v, sqlOperators[c.Op],
		), nil
	}
}

func (b *sqlBuilder) idCondition(c query.Condition) string {
	switch c.Op {
	case query.Eq:
		if list, ok := c.Value.([]any); ok {
			ids := make([]string, 0, len(list))
			for _, v := range list {
				ids = append(ids, fmt.Sprint(v))
			}
			return "id = ANY(" + b.arg(ids) + "::text[])"
		}
		return "id = " + b.arg(fmt.Sprint(c.Value))
	case query.Ne:
		return "id <> " + b.arg(fmt.Sprint(c.Value))
	default:
		return "id " + sqlOperators[c.Op] + " " + b.arg(fmt.Sprint(c.Value))
	}
}

func (b *sqlBuilder) jsonArg(v any) (string, error) {
	raw, err := json.Marshal(encodeValue(v))
	if err != nil {
		return "", fmt.Errorf("encode operand: %w", err)
	}
	return b.arg(string(raw)) + "::jsonb", nil
}

func (b *sqlBuilder) orderBy(sort []query.SortField) string {
	parts := make([]string, 0, len(sort)+1)
	for _, s := range sort {
		dir := "ASC NULLS FIRST"
		if s.Desc {
			dir = "DESC NULLS LAST"
		}
		parts = append(parts, "doc->"+b.arg(s.Field)+"::text "+dir)
	}
	return strings.Join(append(parts, "id ASC"), ", ")
}

func encodeDoc(rec resource.Record) (string, error) {
	doc := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == resource.IDField || v == nil {
			continue
		}
		doc[k] = encodeValue(v)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(raw), nil
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(pgTimeLayout)
	case []time.Time:
		out := make([]string, len(t))
		for i, tt := range t {
			out[i] = tt.UTC().Format(pgTimeLayout)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = encodeValue(item)
		}
		return out
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
