// Package gormstore implements the relational ObjectStore contract on top of
// gorm with the pgx stdlib driver.
package gormstore

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cachemesh/objprovider/component"
	"github.com/cachemesh/objprovider/object/objectapi"
)

type StoreConfig struct {
	PostgresURL string

	MaxIdleConns int
	MaxOpenConns int
}

type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   StoreConfig
}

func NewStore(cfg *StoreConfig) (*Store, error) {
	conf, err := pgx.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	connector := stdlib.GetConnector(*conf)
	sqlDB := sql.OpenDB(connector)
	ormDb, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return &Store{db: ormDb, sqlDB: sqlDB, cfg: *cfg}, nil
}

func (s *Store) Startup() error {
	maxIdle := s.cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	maxOpen := s.cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	s.sqlDB.SetMaxIdleConns(maxIdle)
	s.sqlDB.SetMaxOpenConns(maxOpen)
	s.sqlDB.SetConnMaxIdleTime(time.Hour)
	return nil
}

func (s *Store) Shutdown() error {
	return s.sqlDB.Close()
}

// column identifiers always come from registered type descriptors, never from
// request input, so interpolating them into statements is safe here.
func (s *Store) applyConditions(q *gorm.DB, cond []objectapi.Condition) *gorm.DB {
	for _, c := range cond {
		switch c.Op {
		case objectapi.OpNotEqual:
			q = q.Where(c.Column+" <> ?", c.Value)
		default:
			q = q.Where(c.Column+" = ?", c.Value)
		}
	}
	return q
}

func (s *Store) QueryOne(t *objectapi.TypeInfo, cond []objectapi.Condition, order []objectapi.Order) (map[string]any, error) {
	q := s.applyConditions(s.db.Table(t.TableName), cond)
	for _, o := range order {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	row := map[string]any{}
	if err := q.Limit(1).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func (s *Store) QueryAll(t *objectapi.TypeInfo) ([]map[string]any, error) {
	var rows []map[string]any
	if err := s.db.Table(t.TableName).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) Count(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error) {
	var n int64
	q := s.applyConditions(s.db.Table(t.TableName), cond)
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Insert(t *objectapi.TypeInfo, values map[string]any) (int64, error) {
	cols, args := orderedColumns(values)
	sqlStr := "INSERT INTO " + t.TableName + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		placeholders(len(cols)) + ") RETURNING " + t.IDColumn
	var id int64
	if err := s.db.Raw(sqlStr, args...).Scan(&id).Error; err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) Update(t *objectapi.TypeInfo, id int64, values map[string]any) error {
	delete(values, t.IDColumn)
	res := s.db.Table(t.TableName).Where(t.IDColumn+" = ?", id).Updates(values)
	return res.Error
}

// Upsert inserts or updates in one statement, keyed on the surrogate id when
// the row carries one, otherwise on the guid column.
func (s *Store) Upsert(t *objectapi.TypeInfo, values map[string]any) (int64, error) {
	keyColumn := t.IDColumn
	if objectapi.Int64Column(values, t.IDColumn) <= 0 {
		delete(values, t.IDColumn)
		if !t.HasGUID() {
			return s.Insert(t, values)
		}
		keyColumn = t.GUIDColumn
	}
	cols, args := orderedColumns(values)
	assignments := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == keyColumn {
			continue
		}
		assignments = append(assignments, c+" = EXCLUDED."+c)
	}
	sqlStr := "INSERT INTO " + t.TableName + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		placeholders(len(cols)) + ") ON CONFLICT (" + keyColumn + ") DO UPDATE SET " +
		strings.Join(assignments, ", ") + " RETURNING " + t.IDColumn
	var id int64
	if err := s.db.Raw(sqlStr, args...).Scan(&id).Error; err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) DeleteByID(t *objectapi.TypeInfo, id int64) error {
	return s.db.Exec("DELETE FROM "+t.TableName+" WHERE "+t.IDColumn+" = ?", id).Error
}

func (s *Store) DeleteWhere(t *objectapi.TypeInfo, cond []objectapi.Condition) (int64, error) {
	where, args := conditionSQL(cond)
	sqlStr := "DELETE FROM " + t.TableName
	if where != "" {
		sqlStr += " WHERE " + where
	}
	res := s.db.Exec(sqlStr, args...)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (s *Store) BulkInsert(t *objectapi.TypeInfo, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.Table(t.TableName).Create(rows).Error
}

func (s *Store) InTransaction(fn func(tx component.ObjectStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, sqlDB: s.sqlDB, cfg: s.cfg})
	})
}

func orderedColumns(values map[string]any) ([]string, []any) {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		args = append(args, values[c])
	}
	return cols, args
}

func placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "?"
	}
	return strings.Join(marks, ", ")
}

func conditionSQL(cond []objectapi.Condition) (string, []any) {
	parts := make([]string, 0, len(cond))
	args := make([]any, 0, len(cond))
	for _, c := range cond {
		op := " = ?"
		if c.Op == objectapi.OpNotEqual {
			op = " <> ?"
		}
		parts = append(parts, c.Column+op)
		args = append(args, c.Value)
	}
	return strings.Join(parts, " AND "), args
}

var _ component.ObjectStore = new(Store)
