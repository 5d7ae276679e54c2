package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs the statements in queries.sql against db.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func New(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

// WithConn returns Queries bound to another handle, typically a session connection.
func (q *Queries) WithConn(db DBTX) *Queries {
	return &Queries{db: db, dialect: q.dialect}
}

// BudgetItem mirrors a budget_items row. Columns are nullable because the
// table does not enforce the API's constraints.
type BudgetItem struct {
	ID        int64
	Category  sql.NullString
	Amount    sql.NullFloat64
	Currency  sql.NullString
	Type      sql.NullString
	CreatedAt sql.NullTime
}
