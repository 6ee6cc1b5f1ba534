package storeinfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nodeware/go-datasource/datasource"
	"github.com/nodeware/go-datasource/sourcecache"
)

// OpenSQLDB opens a *bun.DB for cfg's dialect/DSN, registering the matching driver and
// wrapping it with the matching bun dialect.
func OpenSQLDB(cfg SQLConfig) (*bun.DB, error) {
	switch cfg.Dialect {
	case DialectSQLite:
		sqldb, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite3: %w", err)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DialectPostgres:
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unknown SQL dialect %v", cfg.Dialect)
	}
}

type itemRow struct {
	bun.BaseModel `bun:"alias:it"`

	ID      string `bun:"id,pk"`
	Payload []byte `bun:"payload"`
}

// SQLItemsStore is the durable ItemsStore[T], backed by a single table named after
// the entity's list path.
type SQLItemsStore[T any] struct {
	db    *bun.DB
	table string
}

// NewSQLItemsStore creates the items table (if absent) and returns a store over it.
func NewSQLItemsStore[T any](ctx context.Context, db *bun.DB, entityPath string) (*SQLItemsStore[T], error) {
	s := &SQLItemsStore[T]{db: db, table: datasource.ContainerName(entityPath, "items")}
	if _, err := db.NewCreateTable().Model((*itemRow)(nil)).ModelTableExpr(s.table).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.table, err)
	}
	return s, nil
}

func (s *SQLItemsStore[T]) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().Model((*itemRow)(nil)).ModelTableExpr(s.table).Where("1 = 1").Exec(ctx)
	return err
}

func (s *SQLItemsStore[T]) Get(ctx context.Context, id string) (sourcecache.Option[T], error) {
	var row itemRow
	err := s.db.NewSelect().Model(&row).ModelTableExpr(s.table).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sourcecache.None[T](), nil
		}
		return sourcecache.None[T](), err
	}
	item, err := decodePayload[T](row.Payload)
	if err != nil {
		return sourcecache.None[T](), err
	}
	return sourcecache.Some(item), nil
}

func (s *SQLItemsStore[T]) GetMany(ctx context.Context, ids []string) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []itemRow
	if err := s.db.NewSelect().Model(&rows).ModelTableExpr(s.table).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for _, row := range rows {
		item, err := decodePayload[T](row.Payload)
		if err != nil {
			return nil, err
		}
		out[row.ID] = item
	}
	return out, nil
}

func (s *SQLItemsStore[T]) Put(ctx context.Context, id string, item T, overwrite bool) error {
	payload, err := msgpack.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	row := &itemRow{ID: id, Payload: payload}
	q := s.db.NewInsert().Model(row).ModelTableExpr(s.table)
	if overwrite {
		q = q.On("CONFLICT (id) DO UPDATE").Set("payload = EXCLUDED.payload")
	} else {
		q = q.On("CONFLICT (id) DO NOTHING")
	}
	_, err = q.Exec(ctx)
	return err
}

func (s *SQLItemsStore[T]) PutMany(ctx context.Context, items map[string]T, overwrite bool) error {
	for id, item := range items {
		if err := s.Put(ctx, id, item, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLItemsStore[T]) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.NewDelete().Model((*itemRow)(nil)).ModelTableExpr(s.table).Where("id IN (?)", bun.In(ids)).Exec(ctx)
	return err
}

func (s *SQLItemsStore[T]) All(ctx context.Context) (map[string]T, error) {
	var rows []itemRow
	if err := s.db.NewSelect().Model(&rows).ModelTableExpr(s.table).Scan(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]T, len(rows))
	for _, row := range rows {
		item, err := decodePayload[T](row.Payload)
		if err != nil {
			return nil, err
		}
		out[row.ID] = item
	}
	return out, nil
}

func decodePayload[T any](payload []byte) (T, error) {
	var item T
	err := msgpack.Unmarshal(payload, &item)
	return item, err
}

var _ sourcecache.ItemsStore[int] = (*SQLItemsStore[int])(nil)

type requestCacheRow struct {
	bun.BaseModel `bun:"alias:rc"`

	Key string `bun:"key,pk"`
	IDs []byte `bun:"ids"`
}

type paginationRow struct {
	bun.BaseModel `bun:"alias:pg"`

	Outer string `bun:"outer_key,pk"`
	Inner string `bun:"inner_key,pk"`
	IDs   []byte `bun:"ids"`
}

// SQLRequestCacheStore is the durable RequestCacheStore, backed by a request-cache
// table and a separate paginated-request-cache table, both named after the entity's
// list path.
type SQLRequestCacheStore struct {
	db              *bun.DB
	requestTable    string
	paginationTable string
}

// NewSQLRequestCacheStore creates both tables (if absent) and returns a store over them.
func NewSQLRequestCacheStore(ctx context.Context, db *bun.DB, entityPath string) (*SQLRequestCacheStore, error) {
	s := &SQLRequestCacheStore{
		db:              db,
		requestTable:    datasource.ContainerName(entityPath, "requestCache"),
		paginationTable: datasource.ContainerName(entityPath, "paginationRequestCache"),
	}
	if _, err := db.NewCreateTable().Model((*requestCacheRow)(nil)).ModelTableExpr(s.requestTable).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.requestTable, err)
	}
	if _, err := db.NewCreateTable().Model((*paginationRow)(nil)).ModelTableExpr(s.paginationTable).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.paginationTable, err)
	}
	return s, nil
}

func (s *SQLRequestCacheStore) Set(ctx context.Context, key string, ids []string) error {
	payload, err := msgpack.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode ids: %w", err)
	}
	row := &requestCacheRow{Key: key, IDs: payload}
	_, err = s.db.NewInsert().Model(row).ModelTableExpr(s.requestTable).
		On("CONFLICT (key) DO UPDATE").Set("ids = EXCLUDED.ids").Exec(ctx)
	return err
}

func (s *SQLRequestCacheStore) Get(ctx context.Context, key string) (sourcecache.Option[[]string], error) {
	var row requestCacheRow
	err := s.db.NewSelect().Model(&row).ModelTableExpr(s.requestTable).Where("key = ?", key).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sourcecache.None[[]string](), nil
		}
		return sourcecache.None[[]string](), err
	}
	ids, err := decodeIDs(row.IDs)
	if err != nil {
		return sourcecache.None[[]string](), err
	}
	return sourcecache.Some(ids), nil
}

func (s *SQLRequestCacheStore) Clear(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().Model((*requestCacheRow)(nil)).ModelTableExpr(s.requestTable).Where("key = ?", key).Exec(ctx)
	return err
}

func (s *SQLRequestCacheStore) Keys(ctx context.Context) ([]string, error) {
	var rows []requestCacheRow
	if err := s.db.NewSelect().Model(&rows).ModelTableExpr(s.requestTable).Column("key").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Key
	}
	return out, nil
}

func (s *SQLRequestCacheStore) SetPaginated(ctx context.Context, outer, inner string, ids []string) error {
	payload, err := msgpack.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode ids: %w", err)
	}
	row := &paginationRow{Outer: outer, Inner: inner, IDs: payload}
	_, err = s.db.NewInsert().Model(row).ModelTableExpr(s.paginationTable).
		On("CONFLICT (outer_key, inner_key) DO UPDATE").Set("ids = EXCLUDED.ids").Exec(ctx)
	return err
}

func (s *SQLRequestCacheStore) GetPaginated(ctx context.Context, outer, inner string) (sourcecache.Option[[]string], error) {
	var row paginationRow
	err := s.db.NewSelect().Model(&row).ModelTableExpr(s.paginationTable).
		Where("outer_key = ? AND inner_key = ?", outer, inner).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sourcecache.None[[]string](), nil
		}
		return sourcecache.None[[]string](), err
	}
	ids, err := decodeIDs(row.IDs)
	if err != nil {
		return sourcecache.None[[]string](), err
	}
	return sourcecache.Some(ids), nil
}

func (s *SQLRequestCacheStore) ClearPaginated(ctx context.Context, outer string) error {
	_, err := s.db.NewDelete().Model((*paginationRow)(nil)).ModelTableExpr(s.paginationTable).Where("outer_key = ?", outer).Exec(ctx)
	return err
}

func (s *SQLRequestCacheStore) ClearPaginatedPage(ctx context.Context, outer, inner string) error {
	_, err := s.db.NewDelete().Model((*paginationRow)(nil)).ModelTableExpr(s.paginationTable).
		Where("outer_key = ? AND inner_key = ?", outer, inner).Exec(ctx)
	return err
}

func (s *SQLRequestCacheStore) OuterKeys(ctx context.Context) ([]string, error) {
	var rows []paginationRow
	if err := s.db.NewSelect().Model(&rows).ModelTableExpr(s.paginationTable).ColumnExpr("DISTINCT outer_key").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Outer
	}
	return out, nil
}

func (s *SQLRequestCacheStore) InnerKeys(ctx context.Context, outer string) ([]string, error) {
	var rows []paginationRow
	if err := s.db.NewSelect().Model(&rows).ModelTableExpr(s.paginationTable).
		Column("inner_key").Where("outer_key = ?", outer).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Inner
	}
	return out, nil
}

func (s *SQLRequestCacheStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.NewDelete().Model((*requestCacheRow)(nil)).ModelTableExpr(s.requestTable).Where("1 = 1").Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewDelete().Model((*paginationRow)(nil)).ModelTableExpr(s.paginationTable).Where("1 = 1").Exec(ctx)
	return err
}

func decodeIDs(payload []byte) ([]string, error) {
	var ids []string
	err := msgpack.Unmarshal(payload, &ids)
	return ids, err
}

var _ sourcecache.RequestCacheStore = (*SQLRequestCacheStore)(nil)
