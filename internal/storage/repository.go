package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ports"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Options configures Open. For SQLite, DSN is a file path.
type Options struct {
	Dialect      Dialect
	DSN          string
	MaxOpenConns int
}

type Repository struct {
	db      *sql.DB
	queries *Queries
	dialect Dialect
	now     func() time.Time
}

// Open connects to the database, verifies it answers and initialises the schema.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	driverName, err := opts.Dialect.driverName()
	if err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("%s dsn is required", opts.Dialect)
	}

	dsn := opts.DSN
	if opts.Dialect == SQLite {
		if err := os.MkdirAll(filepath.Dir(opts.DSN), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = sqliteDSN(opts.DSN)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Dialect, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(opts.Dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		queries: New(db, opts.Dialect),
		dialect: opts.Dialect,
		now:     time.Now,
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements ports.Pinger
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Dialect() Dialect {
	return r.dialect
}

// OpenSession implements ports.SessionOpener. The session holds one pooled
// connection until Close.
func (r *Repository) OpenSession(ctx context.Context) (ports.ItemSession, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{
		conn:    conn,
		queries: r.queries.WithConn(conn),
		now:     r.now,
	}, nil
}

// Session is the request scoped storage handle.
type Session struct {
	conn      *sql.Conn
	queries   *Queries
	now       func() time.Time
	closeOnce sync.Once
	closeErr  error
}

// Insert implements ports.ItemSession
func (s *Session) Insert(ctx context.Context, in core.ItemInput) (core.BudgetItem, error) {
	createdAt := in.Timestamp(s.now())

	id, err := s.queries.CreateItem(ctx, CreateItemParams{
		Category:  in.Category,
		Amount:    in.Amount,
		Currency:  in.Currency,
		Type:      in.Type.String(),
		CreatedAt: createdAt,
	})
	if err != nil {
		return core.BudgetItem{}, fmt.Errorf("create item: %w", err)
	}

	slog.DebugContext(ctx, "Budget item saved",
		"id", id,
		"category", in.Category,
		"amount", in.Amount,
		"currency", in.Currency,
		"type", in.Type)

	return core.NewBudgetItem(id, in, createdAt), nil
}

// List implements ports.ItemSession
func (s *Session) List(ctx context.Context, skip, limit int) ([]core.BudgetItem, error) {
	rows, err := s.queries.ListItems(ctx, ListItemsParams{
		Limit:  int64(limit),
		Offset: int64(skip),
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]core.BudgetItem, len(rows))
	for i, row := range rows {
		items[i] = row.toCore()
	}
	return items, nil
}

// Get implements ports.ItemSession
func (s *Session) Get(ctx context.Context, id int64) (core.BudgetItem, error) {
	row, err := s.queries.GetItem(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetItem{}, core.ErrItemNotFound
	}
	if err != nil {
		return core.BudgetItem{}, fmt.Errorf("get item by id: %w", err)
	}
	return row.toCore(), nil
}

// Delete implements ports.ItemSession
func (s *Session) Delete(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteItem(ctx, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n == 0 {
		return core.ErrItemNotFound
	}

	slog.DebugContext(ctx, "Budget item deleted", "id", id)
	return nil
}

// Close returns the connection to the pool. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (i BudgetItem) toCore() core.BudgetItem {
	item := core.BudgetItem{
		ID:       i.ID,
		Category: i.Category.String,
		Amount:   i.Amount.Float64,
		Currency: i.Currency.String,
		Type:     core.ItemType(i.Type.String),
	}
	if i.CreatedAt.Valid {
		item.CreatedAt = i.CreatedAt.Time.UTC()
	}
	return item
}
